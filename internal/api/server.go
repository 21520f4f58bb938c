// Package api exposes the operator control surface over HTTP: live
// parameter updates, stage routine requests, recording control and
// episode listing.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aquarig/fintrack/internal/config"
	"github.com/aquarig/fintrack/internal/control"
	"github.com/aquarig/fintrack/internal/datalog"
	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/motion"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/stage"
	"github.com/aquarig/fintrack/internal/track"
)

// Config wires a Server to the pipeline's queues and flags.
type Config struct {
	Episodes       *datalog.EpisodeStore
	Status         *pipe.Queue[stage.Status]
	TrackParams    *pipe.Queue[track.Params]
	RecorderParams *pipe.Queue[motion.RecorderParams]
	Recording      *control.Gate
	Home           *control.Request
	Calibrate      *control.Request
}

type Server struct {
	cfg Config

	mu         sync.Mutex
	lastStatus *stage.Status
}

func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/episodes", s.listEpisodes)
	mux.HandleFunc("/params", s.updateParams)
	mux.HandleFunc("/stage/home", s.requestHome)
	mux.HandleFunc("/stage/calibrate", s.requestCalibrate)
	mux.HandleFunc("/recording", s.setRecording)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("fintrack pipeline control\n"))
}

// statusHandler returns the most recent stage status. The API is the
// sole consumer of the status queue.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if st, ok := s.cfg.Status.Drain(); ok {
		s.lastStatus = &st
	}
	st := s.lastStatus
	s.mu.Unlock()

	if st == nil {
		http.Error(w, "no status yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (s *Server) listEpisodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Episodes == nil {
		http.Error(w, "episode index disabled", http.StatusNotFound)
		return
	}

	recs, err := s.cfg.Episodes.Episodes()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list episodes: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// updateParams accepts the same JSON schema as the startup config file
// and pushes the derived parameter sets to the running components.
func (s *Server) updateParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	cfg := config.EmptyTuningConfig()
	if err := json.Unmarshal(body, cfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid params JSON: %v", err), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid params: %v", err), http.StatusBadRequest)
		return
	}

	s.cfg.TrackParams.SendLatest(TrackParams(cfg))
	s.cfg.RecorderParams.SendLatest(RecorderParams(cfg))
	monitoring.Diagf("api: parameters updated")
	io.WriteString(w, "parameters updated\n")
}

func (s *Server) requestHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.cfg.Home.Raise()
	io.WriteString(w, "homing requested\n")
}

func (s *Server) requestCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.cfg.Calibrate.Raise()
	io.WriteString(w, "calibration requested\n")
}

func (s *Server) setRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch r.FormValue("enabled") {
	case "true", "1":
		s.cfg.Recording.Set()
		io.WriteString(w, "recording enabled\n")
	case "false", "0":
		s.cfg.Recording.Clear()
		io.WriteString(w, "recording disabled\n")
	default:
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
	}
}

// TrackParams derives the dispatcher's tracking parameters from a
// tuning document.
func TrackParams(cfg *config.TuningConfig) track.Params {
	return track.Params{
		"algorithm":   cfg.GetAlgorithm(),
		"threshold":   int(cfg.GetFishThreshold()),
		"rescale":     cfg.GetRescale(),
		"n_segments":  cfg.GetNSegments(),
		"window_size": cfg.GetWindowSize(),
	}
}

// RecorderParams derives the motion recorder's parameters from a
// tuning document.
func RecorderParams(cfg *config.TuningConfig) motion.RecorderParams {
	return motion.RecorderParams{
		Detector: motion.DetectorParams{
			FishThreshold:   cfg.GetFishThreshold(),
			MotionThreshold: cfg.GetMotionThreshold(),
			FrameMargin:     cfg.GetFrameMargin(),
		},
		NPreviousSave: cfg.GetNPreviousSave(),
		NNextSave:     cfg.GetNNextSave(),
	}
}
