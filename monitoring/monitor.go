// Package monitoring serves the state of a running sequencer over HTTP so that
// it can be watched while memory grows.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memrhythm/monitoring/web"
	"github.com/sarchlab/memrhythm/sequencer"
	"github.com/sarchlab/memrhythm/sim/id"
)

// A Snapshotter is anything that can report a sequencer snapshot.
type Snapshotter interface {
	Name() string
	Snapshot() sequencer.Snapshot
}

// Monitor can turn a playback into a server and allows external monitoring
// of the retained memory.
type Monitor struct {
	portNumber  int
	startTime   time.Time
	idGenerator id.IDGenerator
	resources   *ResourceSampler

	sequencersLock sync.RWMutex
	sequencers     []Snapshotter

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:   time.Now(),
		idGenerator: id.NewIDGenerator(),
		resources:   NewResourceSampler(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSequencer registers a sequencer to be monitored.
func (m *Monitor) RegisterSequencer(s Snapshotter) {
	m.sequencersLock.Lock()
	defer m.sequencersLock.Unlock()

	m.sequencers = append(m.sequencers, s)
}

// ResourceSampler returns the sampler that tracks the process resources. It
// can be attached to a sequencer as a hook.
func (m *Monitor) ResourceSampler() *ResourceSampler {
	return m.resources
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP handler of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	fServer := http.FileServer(web.GetAssets())
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_sequencers", m.listSequencers)
	r.HandleFunc("/api/sequencer/{name}", m.sequencerDetails)
	r.HandleFunc("/api/retained", m.retained)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", m.listenAddress())
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring memrhythm with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	return url
}

func (m *Monitor) listenAddress() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

// OpenInBrowser opens the given monitor URL in the default browser.
func (m *Monitor) OpenInBrowser(url string) {
	err := browser.OpenURL(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
	}
}

// StopServer shuts the server down.
func (m *Monitor) StopServer() {
	if m.server == nil {
		return
	}

	err := m.server.Close()
	dieOnErr(err)

	m.server = nil
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	elapsed := time.Since(m.startTime).Seconds()
	fmt.Fprintf(w, "{\"now\":%.10f}", elapsed)
}

func (m *Monitor) listSequencers(w http.ResponseWriter, _ *http.Request) {
	m.sequencersLock.RLock()
	defer m.sequencersLock.RUnlock()

	names := make([]string, 0, len(m.sequencers))
	for _, s := range m.sequencers {
		names = append(names, s.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) sequencerDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s := m.findSequencerOr404(w, name)
	if s == nil {
		return
	}

	snapshot := s.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type retainedRsp struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Pattern     string `json:"pattern"`
	Repetition  int    `json:"repetition"`
	Repetitions int    `json:"repetitions"`
	Step        int    `json:"step"`
	Buffers     int    `json:"buffers"`
	Bytes       uint64 `json:"bytes"`
}

// retained reports the most recently registered sequencer, or the one named
// in the "name" query parameter.
func (m *Monitor) retained(w http.ResponseWriter, r *http.Request) {
	var s Snapshotter

	name := r.URL.Query().Get("name")
	if name != "" {
		s = m.findSequencerOr404(w, name)
		if s == nil {
			return
		}
	} else {
		s = m.latestSequencer()
		if s == nil {
			w.WriteHeader(http.StatusNotFound)
			_, err := w.Write([]byte("No sequencer registered"))
			dieOnErr(err)

			return
		}
	}

	snapshot := s.Snapshot()
	writeJSON(w, retainedRsp{
		Name:        snapshot.Name,
		State:       snapshot.State,
		Pattern:     snapshot.Pattern,
		Repetition:  snapshot.Repetition,
		Repetitions: snapshot.Repetitions,
		Step:        snapshot.Step,
		Buffers:     snapshot.RetainedBuffers,
		Bytes:       snapshot.RetainedBytes,
	})
}

func (m *Monitor) latestSequencer() Snapshotter {
	m.sequencersLock.RLock()
	defer m.sequencersLock.RUnlock()

	if len(m.sequencers) == 0 {
		return nil
	}

	return m.sequencers[len(m.sequencers)-1]
}

func (m *Monitor) findSequencerOr404(
	w http.ResponseWriter,
	name string,
) Snapshotter {
	m.sequencersLock.RLock()
	defer m.sequencersLock.RUnlock()

	for _, s := range m.sequencers {
		if s.Name() == name {
			return s
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Sequencer not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemorySize    uint64  `json:"memory_size"`
	PeakMemory    uint64  `json:"peak_memory_size"`
	NumGoroutines int     `json:"num_goroutines"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	usage, err := readResourceUsage()
	dieOnErr(err)

	m.resources.observe(usage.RSS)

	writeJSON(w, resourceRsp{
		CPUPercent:    usage.CPUPercent,
		MemorySize:    usage.RSS,
		PeakMemory:    m.resources.PeakRSS(),
		NumGoroutines: runtime.NumGoroutine(),
	})
}

type profileRsp struct {
	InUseBytes   int64 `json:"inuse_space"`
	InUseObjects int64 `json:"inuse_objects"`
	NumSamples   int   `json:"num_samples"`
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	rsp, err := heapProfile()
	dieOnErr(err)

	writeJSON(w, rsp)
}

// heapProfile takes a heap profile after a collection, so that only the
// reachable memory is counted.
func heapProfile() (profileRsp, error) {
	runtime.GC()

	buf := bytes.NewBuffer(nil)

	err := pprof.Lookup("heap").WriteTo(buf, 0)
	if err != nil {
		return profileRsp{}, err
	}

	prof, err := profile.Parse(buf)
	if err != nil {
		return profileRsp{}, err
	}

	rsp := profileRsp{NumSamples: len(prof.Sample)}

	for i, st := range prof.SampleType {
		for _, s := range prof.Sample {
			switch st.Type {
			case "inuse_space":
				rsp.InUseBytes += s.Value[i]
			case "inuse_objects":
				rsp.InUseObjects += s.Value[i]
			}
		}
	}

	return rsp, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
