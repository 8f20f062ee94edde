// Package server runs ascents on request and serves their trajectories over HTTP and websockets.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	spacez "github.com/DavaToros/SpaceZ"
	"github.com/DavaToros/SpaceZ/metrics"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxConfigSize = 1 << 20

// ErrRunning is returned when removing a simulation which is still integrating.
var ErrRunning = errors.New("simulation still integrating")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Simulation is one ascent run by the server.
type Simulation struct {
	ID      string
	Config  spacez.Config
	Created time.Time

	mu      sync.RWMutex
	samples []spacez.Sample
	status  spacez.Status
	err     error
	changed chan struct{} // closed and replaced on every update
}

func newSimulation(id string, conf spacez.Config) *Simulation {
	return &Simulation{ID: id, Config: conf, Created: time.Now().UTC(), changed: make(chan struct{})}
}

// Publish implements the spacez.SampleSink interface.
func (sim *Simulation) Publish(s spacez.Sample) {
	sim.mu.Lock()
	sim.samples = append(sim.samples, s)
	sim.notify()
	sim.mu.Unlock()
}

func (sim *Simulation) finish(status spacez.Status, err error) {
	sim.mu.Lock()
	sim.status = status
	sim.err = err
	sim.notify()
	sim.mu.Unlock()
}

// notify must be called with the lock held.
func (sim *Simulation) notify() {
	close(sim.changed)
	sim.changed = make(chan struct{})
}

// snapshot returns the samples from index `from`, whether the run is over and the channel closed on the next update.
func (sim *Simulation) snapshot(from int) ([]spacez.Sample, bool, <-chan struct{}) {
	sim.mu.RLock()
	defer sim.mu.RUnlock()
	var samples []spacez.Sample
	if from < len(sim.samples) {
		samples = sim.samples[from:len(sim.samples):len(sim.samples)]
	}
	return samples, sim.done(), sim.changed
}

// done must be called with the lock held.
func (sim *Simulation) done() bool {
	return sim.status == spacez.Completed || sim.status == spacez.Failed
}

// Summary is the JSON view of a simulation.
type Summary struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Created time.Time      `json:"created"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Samples int            `json:"samples"`
	Final   *spacez.Sample `json:"final,omitempty"`
}

// Summary returns the current summary of the simulation.
func (sim *Simulation) Summary() Summary {
	sim.mu.RLock()
	defer sim.mu.RUnlock()
	sum := Summary{ID: sim.ID, Name: sim.Config.Name, Created: sim.Created, Status: sim.status.String(), Samples: len(sim.samples)}
	if sim.err != nil {
		sum.Error = sim.err.Error()
	}
	if n := len(sim.samples); n > 0 {
		final := sim.samples[n-1]
		sum.Final = &final
	}
	return sum
}

// Message is sent on the sample stream.
type Message struct {
	Type   string         `json:"type"` // sample or end
	Sample *spacez.Sample `json:"sample,omitempty"`
	Status string         `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Server runs the ascents submitted over HTTP.
type Server struct {
	mu      sync.RWMutex
	sims    map[string]*Simulation
	order   []string
	lastID  uint64
	wg      sync.WaitGroup
	logger  kitlog.Logger
	metrics *metrics.Sink
	reg     *prometheus.Registry
	router  *mux.Router
}

// New returns a new server logging to the provided logger. Its metrics are registered on a dedicated registry.
func New(logger kitlog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewSink(reg)
	if err != nil {
		return nil, err
	}
	s := &Server{sims: make(map[string]*Simulation), logger: kitlog.With(logger, "subsys", "server"), metrics: sink, reg: reg}
	r := mux.NewRouter()
	r.HandleFunc("/simulations", s.createHandler).Methods("POST")
	r.HandleFunc("/simulations", s.listHandler).Methods("GET")
	r.HandleFunc("/simulations/{id}", s.getHandler).Methods("GET")
	r.HandleFunc("/simulations/{id}", s.deleteHandler).Methods("DELETE")
	r.HandleFunc("/simulations/{id}/csv", s.csvHandler).Methods("GET")
	r.HandleFunc("/simulations/{id}/stream", s.streamHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the prometheus registry of the server.
func (s *Server) Registry() *prometheus.Registry {
	return s.reg
}

// Wait blocks until all the submitted simulations are over.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Submit starts the ascent of this configuration in the background.
func (s *Server) Submit(conf spacez.Config) (*Simulation, error) {
	s.mu.Lock()
	s.lastID++
	id := strconv.FormatUint(s.lastID, 10)
	s.mu.Unlock()
	sim := newSimulation(id, conf)
	ascent, err := spacez.NewAscent(conf, spacez.ExportConfig{}, sim, s.metrics.Run(id))
	if err != nil {
		return nil, err
	}
	ascent.SetLogger(kitlog.With(s.logger, "simulation", id))
	sim.status = spacez.Integrating
	s.mu.Lock()
	s.sims[id] = sim
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		traj, err := ascent.Propagate()
		sim.finish(traj.Status, err)
		s.metrics.Finished(traj.Status)
	}()
	return sim, nil
}

// Simulation returns the simulation of this ID, if any.
func (s *Server) Simulation(id string) (*Simulation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.sims[id]
	return sim, ok
}

// Remove forgets a finished simulation and its metrics. It returns false if there is no such
// simulation, and ErrRunning if it is still integrating.
func (s *Server) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.sims[id]
	if !ok {
		return false, nil
	}
	sim.mu.RLock()
	done := sim.done()
	sim.mu.RUnlock()
	if !done {
		return true, ErrRunning
	}
	delete(s.sims, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.metrics.Forget(id)
	return true, nil
}

func (s *Server) createHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	conf, err := spacez.ParseConfig(bytes.NewReader(body), "json")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sim, err := s.Submit(conf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	level.Info(s.logger).Log("simulation", sim.ID, "name", conf.Name, "status", "submitted")
	w.Header().Set("Location", "/simulations/"+sim.ID)
	writeJSON(w, http.StatusAccepted, sim.Summary())
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sums := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		sums = append(sums, s.sims[id].Summary())
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Simulation, bool) {
	id := mux.Vars(r)["id"]
	sim, ok := s.Simulation(id)
	if !ok {
		http.Error(w, fmt.Sprintf("no simulation %s", id), http.StatusNotFound)
	}
	return sim, ok
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	if sim, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, sim.Summary())
	}
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := s.Remove(id)
	switch {
	case !found:
		http.Error(w, fmt.Sprintf("no simulation %s", id), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		level.Info(s.logger).Log("simulation", id, "status", "removed")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) csvHandler(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookup(w, r)
	if !ok {
		return
	}
	samples, _, _ := sim.snapshot(0)
	w.Header().Set("Content-Type", "text/csv")
	if err := spacez.WriteCSV(w, samples); err != nil {
		level.Error(s.logger).Log("simulation", sim.ID, "err", err)
	}
}

// streamHandler replays the samples of the simulation on a websocket, and follows it until it is over.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Error(s.logger).Log("simulation", sim.ID, "err", err)
		return
	}
	defer conn.Close()
	// Detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	for {
		samples, done, changed := sim.snapshot(sent)
		for i := range samples {
			if err := conn.WriteJSON(Message{Type: "sample", Sample: &samples[i]}); err != nil {
				return
			}
		}
		sent += len(samples)
		if done {
			break
		}
		select {
		case <-changed:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
	sum := sim.Summary()
	conn.WriteJSON(Message{Type: "end", Status: sum.Status, Error: sum.Error})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
