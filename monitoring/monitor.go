// Package monitoring serves the progress of a running harness over HTTP.
// The server runs on its own goroutine and only reads the progress copy the
// stepping loop publishes.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/difftest/harness"
)

// ProgressSource publishes the state of a run. *harness.Controller
// implements it.
type ProgressSource interface {
	Progress() harness.Progress
}

// Monitor is an HTTP server exposing a run's progress.
type Monitor struct {
	source          ProgressSource
	portNumber      int
	profileDuration time.Duration
	log             io.Writer
	started         time.Time

	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a monitor for source.
func NewMonitor(source ProgressSource) *Monitor {
	return &Monitor{
		source:          source,
		profileDuration: time.Second,
		log:             os.Stderr,
		started:         time.Now(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000
// select a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// WithLog sets the diagnostic writer.
func (m *Monitor) WithLog(w io.Writer) *Monitor {
	m.log = w
	return m
}

// Router returns the API routes.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.progress).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	return r
}

// StartServer starts serving in the background.
func (m *Monitor) StartServer() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	m.listener = listener
	m.server = &http.Server{Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}

	fmt.Fprintf(m.log, "> Monitoring run with http://localhost:%d\n",
		listener.Addr().(*net.TCPAddr).Port)

	go func() {
		if err := m.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(m.log, "> monitor stopped: %v\n", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or "" before StartServer.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	p := m.source.Progress()
	fmt.Fprintf(w, "{\"now\":%d,\"wall\":%.3f}", p.Time, time.Since(m.started).Seconds())
}

func (m *Monitor) progress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.source.Progress())
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	p := m.source.Progress()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&p)
	serializer.SetMaxDepth(1)
	if err := serializer.Serialize(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: memory.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	time.Sleep(m.profileDuration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
