package harness

import (
	"fmt"
	"io"

	"github.com/sarchlab/difftest/dut"
)

// IssueQueues is the number of issue queues the debug counters describe.
const IssueQueues = 4

// Stats accumulates the design's performance counters once per cycle.
type Stats struct {
	Cycles uint64

	IQEmpty [IssueQueues]uint64
	IQFull  [IssueQueues]uint64

	BoundedByROB uint64
	BoundedByLSQ uint64

	// Issue and Retire are histograms indexed by the number of
	// instructions issued or retired in a cycle.
	Issue  []uint64
	Retire []uint64
}

// NewStats creates counters for a design that issues and retires up to
// width instructions per cycle.
func NewStats(width int) *Stats {
	return &Stats{
		Issue:  make([]uint64, width+1),
		Retire: make([]uint64, width+1),
	}
}

// Accumulate adds one cycle of counters.
func (s *Stats) Accumulate(d dut.DebugCounters) {
	s.Cycles++

	for i := 0; i < IssueQueues; i++ {
		if d.IQEmptyMask&(1<<i) != 0 {
			s.IQEmpty[i]++
		}
		if d.IQFullMask&(1<<i) != 0 {
			s.IQFull[i]++
		}
	}

	if d.IssueBoundedByROB {
		s.BoundedByROB++
	}
	if d.IssueBoundedByLSQ {
		s.BoundedByLSQ++
	}

	s.Issue[clamp(d.IssueNum, len(s.Issue))]++
	s.Retire[clamp(d.RetireNum, len(s.Retire))]++
}

func clamp(n, size int) int {
	switch {
	case n < 0:
		return 0
	case n >= size:
		return size - 1
	}
	return n
}

func (s *Stats) percent(n uint64) float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(n) * 100 / float64(s.Cycles)
}

// Print writes the counters as percentages of the accumulated cycles.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "> Issue queue empty cycle:")
	for _, n := range s.IQEmpty {
		fmt.Fprintf(w, " %.2f%%", s.percent(n))
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "> Issue queue full cycle:")
	for _, n := range s.IQFull {
		fmt.Fprintf(w, " %.2f%%", s.percent(n))
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "> Cycles when issue num is bounded by ROB size: %.2f%%\n", s.percent(s.BoundedByROB))
	fmt.Fprintf(w, "> Cycles when issue num is bounded by LSQ size: %.2f%%\n", s.percent(s.BoundedByLSQ))

	printHistogram(w, "Issue Num", s.Issue, s.percent)
	printHistogram(w, "Retire Num", s.Retire, s.percent)
}

func printHistogram(w io.Writer, title string, h []uint64, percent func(uint64) float64) {
	fmt.Fprintf(w, "> %s:", title)
	for i, n := range h {
		fmt.Fprintf(w, " %d=%.2f%%", i, percent(n))
	}
	fmt.Fprintf(w, "\n")
}
