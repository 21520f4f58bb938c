// Command fintrackd runs the closed-loop tracking pipeline: camera
// frames through the dispatcher, the motion-triggered recorder and the
// stage controller, with an HTTP control surface for the operator.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/aquarig/fintrack/internal/api"
	"github.com/aquarig/fintrack/internal/config"
	"github.com/aquarig/fintrack/internal/control"
	"github.com/aquarig/fintrack/internal/datalog"
	"github.com/aquarig/fintrack/internal/dispatch"
	"github.com/aquarig/fintrack/internal/motion"
	"github.com/aquarig/fintrack/internal/pipe"
	"github.com/aquarig/fintrack/internal/stage"
	"github.com/aquarig/fintrack/internal/track"
	"github.com/aquarig/fintrack/internal/units"
	"github.com/aquarig/fintrack/internal/version"
	"github.com/aquarig/fintrack/internal/video"
)

var (
	devMode    = flag.Bool("dev", false, "Run with synthetic camera and mock stage axes")
	listen     = flag.String("listen", ":8080", "Listen address for the control API")
	configPath = flag.String("config", "", "Tuning config JSON (defaults used when empty)")
	dbPath     = flag.String("db", "episodes.db", "Episode index database path")
	framesDir  = flag.String("frames", "frames", "Recorded frame archive directory")
	sessionDir = flag.String("sessions", "sessions", "Session metadata directory")
)

func main() {
	flag.Parse()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Session store: restore the previous run's tracking parameters
	// when the parameter schema is unchanged.
	if err := os.MkdirAll(*sessionDir, 0o755); err != nil {
		log.Fatalf("failed to create session directory: %v", err)
	}
	sessions, err := datalog.NewSessionStore(*sessionDir)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	trackParams := api.TrackParams(cfg)
	if saved, ok, err := sessions.Restore(trackParams); err != nil {
		logger.Warn("session restore failed", "error", err)
	} else if ok {
		trackParams = track.Params(saved)
		logger.Info("restored tracking parameters from previous session")
	}
	if err := sessions.SaveConfig(trackParams); err != nil {
		logger.Warn("session save failed", "error", err)
	}

	episodes, err := datalog.OpenEpisodeStore(*dbPath)
	if err != nil {
		log.Fatalf("failed to open episode index: %v", err)
	}
	defer episodes.Close()

	archive, err := datalog.NewFrameArchive(*framesDir)
	if err != nil {
		log.Fatalf("failed to open frame archive: %v", err)
	}

	converter, err := units.NewConverter(cfg.GetStepsPerPixel())
	if err != nil {
		log.Fatalf("invalid steps_per_pixel: %v", err)
	}

	var axisX, axisY stage.Axis
	if *devMode {
		axisX = &stage.MockAxis{Pos: cfg.GetHomeOffsetSteps()}
		axisY = &stage.MockAxis{Pos: cfg.GetHomeOffsetSteps()}
	} else {
		axisX, err = stage.OpenSerialAxis("x", cfg.GetXAxisPort())
		if err != nil {
			log.Fatalf("failed to open x axis: %v", err)
		}
		axisY, err = stage.OpenSerialAxis("y", cfg.GetYAxisPort())
		if err != nil {
			log.Fatalf("failed to open y axis: %v", err)
		}
	}

	// Queues. The camera feeds the dispatcher and the recorder
	// independently; results feed the stage controller.
	var (
		cameraDispatch  = pipe.New[video.Frame](cfg.GetCameraQueueDepth())
		cameraRecorder  = pipe.New[video.Frame](cfg.GetCameraQueueDepth())
		trackUpdates    = pipe.New[track.Params](4)
		recorderUpdates = pipe.New[motion.RecorderParams](4)
		results         = pipe.New[dispatch.TimedResult](64)
		displayTracking = pipe.New[video.Frame](cfg.GetDisplayQueueDepth())
		displayRecorder = pipe.New[video.Frame](cfg.GetDisplayQueueDepth())
		recorded        = pipe.New[video.Frame](cfg.GetOutputQueueDepth())
		frameStarts     = pipe.New[time.Time](cfg.GetOutputQueueDepth())
		episodeEvents   = pipe.New[motion.EpisodeEvent](16)
		status          = pipe.New[stage.Status](8)
	)

	recording := &control.Gate{}
	recording.Set()
	homeReq := &control.Request{}
	calibrateReq := &control.Request{}

	dispatcher := dispatch.New(dispatch.Config{
		Camera:           cameraDispatch,
		ParamUpdates:     trackUpdates,
		Results:          results,
		Display:          displayTracking,
		InitialParams:    trackParams,
		TargetDisplayFPS: cfg.GetDisplayFPS(),
		FPSRange:         cfg.GetFPSRange(),
	})
	recorder := motion.New(motion.Config{
		Camera:           cameraRecorder,
		ParamUpdates:     recorderUpdates,
		Output:           recorded,
		FrameStarts:      frameStarts,
		Episodes:         episodeEvents,
		Display:          displayRecorder,
		RecordingEnabled: recording,
		MemoryLimit:      cfg.GetMemoryLimit(),
		InitialParams:    api.RecorderParams(cfg),
		TargetDisplayFPS: cfg.GetDisplayFPS(),
		FPSRange:         cfg.GetFPSRange(),
	})
	controller := stage.New(stage.Config{
		X:                axisX,
		Y:                axisY,
		Positions:        results,
		Status:           status,
		Home:             homeReq,
		Calibrate:        calibrateReq,
		Converter:        converter,
		HomeOffsetSteps:  cfg.GetHomeOffsetSteps(),
		ArenaRadiusSteps: cfg.GetArenaRadiusSteps(),
		FPSRange:         cfg.GetFPSRange(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if *devMode {
		camera := &video.SyntheticCamera{FPS: cfg.GetDisplayFPS() * 2}
		wg.Add(1)
		go func() {
			defer wg.Done()
			camera.Run(ctx, cameraDispatch, cameraRecorder)
			logger.Info("camera routine terminated")
		}()
	} else {
		logger.Warn("no camera driver configured; feed frames via the camera queues")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("dispatcher failed", "error", err)
		}
		logger.Info("dispatcher terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := recorder.Run(ctx); err != nil {
			logger.Error("recorder failed", "error", err)
		}
		logger.Info("recorder terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := controller.Run(ctx); err != nil {
			logger.Error("stage controller failed", "error", err)
		}
		logger.Info("stage controller terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		episodes.Sink(ctx, episodeEvents)
		logger.Info("episode sink terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		archive.Sink(ctx, recorded)
		logger.Info("frame archive terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		archive.SinkStarts(ctx, frameStarts)
		logger.Info("frame start log terminated")
	}()

	// HTTP control surface.
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiMux := api.NewServer(api.Config{
			Episodes:       episodes,
			Status:         status,
			TrackParams:    trackUpdates,
			RecorderParams: recorderUpdates,
			Recording:      recording,
			Home:           homeReq,
			Calibrate:      calibrateReq,
		}).ServeMux()
		mux := http.NewServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	logger.Info("fintrackd started", "version", version.Version, "listen", *listen, "dev", *devMode)
	wg.Wait()
}

// loadConfig reads the named tuning file, falling back to the canonical
// defaults file when present and built-in defaults otherwise.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.EmptyTuningConfig(), nil
}
