// Package trace records a harness run into a SQLite database: every checked
// commit, every bus burst with its beat count, and the failure that ended
// the run.
package trace

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/harness"
	"github.com/sarchlab/difftest/insts"
)

// DefaultPath is where the trace is written when no path is given.
const DefaultPath = "dump.sqlite3"

const defaultBatchSize = 10000

type commitRow struct {
	time uint64
	pc   uint64
	inst uint32
}

type burstRow struct {
	txn   bus.Transaction
	start uint64
	end   uint64
	beats int
}

type mismatchRow struct {
	time    uint64
	message string
}

// Recorder is a hook that writes the events it observes to a database.
type Recorder struct {
	*sql.DB

	path      string
	runID     string
	now       func() uint64
	log       io.Writer
	batchSize int

	commitStatement   *sql.Stmt
	burstStatement    *sql.Stmt
	mismatchStatement *sql.Stmt

	commits    []commitRow
	bursts     []burstRow
	mismatches []mismatchRow
	open       map[string]*burstRow

	closed bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLog sets the diagnostic writer.
func WithLog(w io.Writer) Option {
	return func(r *Recorder) {
		r.log = w
	}
}

// WithBatchSize sets how many rows are buffered before they are written.
func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		r.batchSize = n
	}
}

// WithTime sets the clock stamped on rows.
func WithTime(now func() uint64) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates the database at path, replacing an existing file.
// The recorder is flushed and closed at process exit.
func NewRecorder(path string, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		path:      path,
		runID:     xid.New().String(),
		now:       func() uint64 { return 0 },
		log:       os.Stderr,
		batchSize: defaultBatchSize,
		open:      make(map[string]*burstRow),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove old trace: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	r.DB = db

	if err := r.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := r.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	fmt.Fprintf(r.log, "> Trace is collected in %s (run %s)\n", path, r.runID)
	atexit.Register(func() { _ = r.Close() })

	return r, nil
}

// RunID returns the identifier of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Path returns the database file.
func (r *Recorder) Path() string {
	return r.path
}

// Attach subscribes the recorder to a controller and its bus channels and
// stamps rows with the controller's time.
func (r *Recorder) Attach(c *harness.Controller) {
	r.now = c.Context().Now
	c.AcceptHook(r)

	main, periph := c.Channels()
	main.AcceptHook(r)
	periph.AcceptHook(r)
}

// Func implements sim.Hook.
func (r *Recorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case bus.HookPosBurstStart:
		txn := ctx.Item.(bus.Transaction)
		r.open[txn.ID] = &burstRow{txn: txn, start: r.now()}
	case bus.HookPosBeat:
		txn := ctx.Item.(bus.Transaction)
		if b, ok := r.open[txn.ID]; ok {
			b.beats++
		}
	case bus.HookPosBurstEnd:
		txn := ctx.Item.(bus.Transaction)
		if b, ok := r.open[txn.ID]; ok {
			b.end = r.now()
			r.bursts = append(r.bursts, *b)
			delete(r.open, txn.ID)
		}
	case harness.HookPosCommit:
		c := ctx.Item.(dut.Commit)
		r.commits = append(r.commits, commitRow{time: r.now(), pc: c.PC, inst: c.Inst})
	case harness.HookPosMismatch:
		err := ctx.Item.(error)
		r.mismatches = append(r.mismatches, mismatchRow{time: r.now(), message: err.Error()})
	case harness.HookPosFinish:
		res := ctx.Item.(harness.Result)
		r.report(r.writeRun(res))
	}

	if len(r.commits)+len(r.bursts) >= r.batchSize {
		r.report(r.Flush())
	}
}

func (r *Recorder) report(err error) {
	if err != nil {
		fmt.Fprintf(r.log, "> failed to write trace: %v\n", err)
	}
}

// Flush writes all buffered rows.
func (r *Recorder) Flush() error {
	if len(r.commits) == 0 && len(r.bursts) == 0 && len(r.mismatches) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	// SQLite integers are signed, so addresses are stored as int64.
	commits := tx.Stmt(r.commitStatement)
	for _, c := range r.commits {
		_, err := commits.Exec(
			r.runID, int64(c.time), int64(c.pc), c.inst, insts.Disassemble(c.inst))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert commit: %w", err)
		}
	}

	bursts := tx.Stmt(r.burstStatement)
	for _, b := range r.bursts {
		_, err := bursts.Exec(
			r.runID, b.txn.ID, b.txn.Channel, b.txn.Direction.String(), int64(b.txn.BusID),
			int64(b.txn.Addr), b.txn.Len, b.txn.Size, b.beats, int64(b.start), int64(b.end))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert burst: %w", err)
		}
	}

	mismatches := tx.Stmt(r.mismatchStatement)
	for _, m := range r.mismatches {
		_, err := mismatches.Exec(r.runID, int64(m.time), m.message)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert mismatch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}

	r.commits = nil
	r.bursts = nil
	r.mismatches = nil

	return nil
}

func (r *Recorder) writeRun(res harness.Result) error {
	if err := r.Flush(); err != nil {
		return err
	}

	_, err := r.Exec(`INSERT INTO run (run_id, result, end_time, finished_at) VALUES (?, ?, ?, ?)`,
		r.runID, res.String(), int64(r.now()), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Close flushes the buffered rows and closes the database. It is safe to
// call more than once.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.Flush()
	if err := r.DB.Close(); err != nil {
		return fmt.Errorf("failed to close trace database: %w", err)
	}
	return flushErr
}

func (r *Recorder) createTables() error {
	stmts := []string{
		`CREATE TABLE run
		(
			run_id      VARCHAR(20) NOT NULL PRIMARY KEY,
			result      VARCHAR(10) NOT NULL,
			end_time    INTEGER     NOT NULL,
			finished_at INTEGER     NOT NULL
		);`,
		`CREATE TABLE commits
		(
			run_id VARCHAR(20) NOT NULL,
			time   INTEGER     NOT NULL,
			pc     INTEGER     NOT NULL,
			inst   INTEGER     NOT NULL,
			disasm VARCHAR(100)
		);`,
		`CREATE INDEX commits_pc_index ON commits (pc);`,
		`CREATE TABLE bursts
		(
			run_id     VARCHAR(20) NOT NULL,
			burst_id   VARCHAR(20) NOT NULL,
			channel    VARCHAR(20) NOT NULL,
			direction  VARCHAR(10) NOT NULL,
			bus_id     INTEGER,
			addr       INTEGER     NOT NULL,
			len        INTEGER,
			size       INTEGER,
			beats      INTEGER,
			start_time INTEGER     NOT NULL,
			end_time   INTEGER
		);`,
		`CREATE INDEX bursts_addr_index ON bursts (addr);`,
		`CREATE TABLE mismatches
		(
			run_id  VARCHAR(20) NOT NULL,
			time    INTEGER     NOT NULL,
			message TEXT
		);`,
	}

	for _, s := range stmts {
		if _, err := r.Exec(s); err != nil {
			return fmt.Errorf("failed to create trace tables: %w", err)
		}
	}
	return nil
}

func (r *Recorder) prepareStatements() error {
	var err error

	r.commitStatement, err = r.Prepare(
		`INSERT INTO commits (run_id, time, pc, inst, disasm) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare commit statement: %w", err)
	}

	r.burstStatement, err = r.Prepare(
		`INSERT INTO bursts (run_id, burst_id, channel, direction, bus_id, addr, len, size, beats,
			start_time, end_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare burst statement: %w", err)
	}

	r.mismatchStatement, err = r.Prepare(
		`INSERT INTO mismatches (run_id, time, message) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare mismatch statement: %w", err)
	}

	return nil
}
