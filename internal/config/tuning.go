// Package config loads the pipeline tuning from JSON. All fields are
// optional pointers so partial files override only what they name; the
// Get* accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/fintrack.defaults.json"

// TuningConfig is the root tuning document. The schema doubles as the
// runtime parameter-update payload, so one JSON shape serves both
// startup configuration and live adjustment.
type TuningConfig struct {
	// Tracking params
	Algorithm     *string  `json:"algorithm,omitempty"`
	FishThreshold *int     `json:"fish_threshold,omitempty"`
	Rescale       *float64 `json:"rescale,omitempty"`
	NSegments     *int     `json:"n_segments,omitempty"`
	WindowSize    *int     `json:"window_size,omitempty"`

	// Motion recorder params
	MotionThreshold *int64   `json:"motion_threshold,omitempty"`
	FrameMargin     *int     `json:"frame_margin,omitempty"`
	NPreviousSave   *int     `json:"n_previous_save,omitempty"`
	NNextSave       *int     `json:"n_next_save,omitempty"`
	MemoryLimit     *float64 `json:"memory_limit,omitempty"`

	// Display and telemetry params
	DisplayFPS *float64 `json:"display_fps,omitempty"`
	FPSRange   *int     `json:"fps_range,omitempty"`

	// Stage params
	StepsPerPixel    *float64 `json:"steps_per_pixel,omitempty"`
	HomeOffsetSteps  *int64   `json:"home_offset_steps,omitempty"`
	ArenaRadiusSteps *int64   `json:"arena_radius_steps,omitempty"`
	XAxisPort        *string  `json:"x_axis_port,omitempty"`
	YAxisPort        *string  `json:"y_axis_port,omitempty"`

	// Queue depths
	CameraQueueDepth  *int `json:"camera_queue_depth,omitempty"`
	DisplayQueueDepth *int `json:"display_queue_depth,omitempty"`
	OutputQueueDepth  *int `json:"output_queue_depth,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields
// omitted from the file keep their defaults, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that set configuration values are in range.
func (c *TuningConfig) Validate() error {
	if c.FishThreshold != nil {
		if *c.FishThreshold < 0 || *c.FishThreshold > 255 {
			return fmt.Errorf("fish_threshold must be between 0 and 255, got %d", *c.FishThreshold)
		}
	}
	if c.MemoryLimit != nil {
		if *c.MemoryLimit <= 0 || *c.MemoryLimit > 1 {
			return fmt.Errorf("memory_limit must be in (0, 1], got %f", *c.MemoryLimit)
		}
	}
	if c.Rescale != nil && *c.Rescale <= 0 {
		return fmt.Errorf("rescale must be positive, got %f", *c.Rescale)
	}
	if c.StepsPerPixel != nil && *c.StepsPerPixel <= 0 {
		return fmt.Errorf("steps_per_pixel must be positive, got %f", *c.StepsPerPixel)
	}
	if c.DisplayFPS != nil && *c.DisplayFPS <= 0 {
		return fmt.Errorf("display_fps must be positive, got %f", *c.DisplayFPS)
	}
	if c.FPSRange != nil && *c.FPSRange < 1 {
		return fmt.Errorf("fps_range must be at least 1, got %d", *c.FPSRange)
	}
	if c.NPreviousSave != nil && *c.NPreviousSave < 0 {
		return fmt.Errorf("n_previous_save must be non-negative, got %d", *c.NPreviousSave)
	}
	if c.NNextSave != nil && *c.NNextSave < 0 {
		return fmt.Errorf("n_next_save must be non-negative, got %d", *c.NNextSave)
	}
	return nil
}

// GetAlgorithm returns the tracking algorithm name or the default.
func (c *TuningConfig) GetAlgorithm() string {
	if c.Algorithm == nil || *c.Algorithm == "" {
		return "centroid"
	}
	return *c.Algorithm
}

// GetFishThreshold returns the fish_threshold value or the default.
func (c *TuningConfig) GetFishThreshold() uint8 {
	if c.FishThreshold == nil {
		return 100
	}
	return uint8(*c.FishThreshold)
}

// GetRescale returns the rescale value or the default.
func (c *TuningConfig) GetRescale() float64 {
	if c.Rescale == nil {
		return 1.0
	}
	return *c.Rescale
}

// GetNSegments returns the n_segments value or the default.
func (c *TuningConfig) GetNSegments() int {
	if c.NSegments == nil {
		return 10
	}
	return *c.NSegments
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetMotionThreshold returns the motion_threshold value or the default.
func (c *TuningConfig) GetMotionThreshold() int64 {
	if c.MotionThreshold == nil {
		return 255 * 8
	}
	return *c.MotionThreshold
}

// GetFrameMargin returns the frame_margin value or the default.
func (c *TuningConfig) GetFrameMargin() int {
	if c.FrameMargin == nil {
		return 10
	}
	return *c.FrameMargin
}

// GetNPreviousSave returns the n_previous_save value or the default.
func (c *TuningConfig) GetNPreviousSave() int {
	if c.NPreviousSave == nil {
		return 400
	}
	return *c.NPreviousSave
}

// GetNNextSave returns the n_next_save value or the default.
func (c *TuningConfig) GetNNextSave() int {
	if c.NNextSave == nil {
		return 300
	}
	return *c.NNextSave
}

// GetMemoryLimit returns the memory_limit value or the default.
func (c *TuningConfig) GetMemoryLimit() float64 {
	if c.MemoryLimit == nil {
		return 0.9
	}
	return *c.MemoryLimit
}

// GetDisplayFPS returns the display_fps value or the default.
func (c *TuningConfig) GetDisplayFPS() float64 {
	if c.DisplayFPS == nil {
		return 30
	}
	return *c.DisplayFPS
}

// GetFPSRange returns the fps_range value or the default.
func (c *TuningConfig) GetFPSRange() int {
	if c.FPSRange == nil {
		return 10
	}
	return *c.FPSRange
}

// GetStepsPerPixel returns the steps_per_pixel value or the default.
func (c *TuningConfig) GetStepsPerPixel() float64 {
	if c.StepsPerPixel == nil {
		return 20000
	}
	return *c.StepsPerPixel
}

// GetHomeOffsetSteps returns the home_offset_steps value or the default.
func (c *TuningConfig) GetHomeOffsetSteps() int64 {
	if c.HomeOffsetSteps == nil {
		return 2200000
	}
	return *c.HomeOffsetSteps
}

// GetArenaRadiusSteps returns the arena_radius_steps value or the default.
func (c *TuningConfig) GetArenaRadiusSteps() int64 {
	if c.ArenaRadiusSteps == nil {
		return 1500000
	}
	return *c.ArenaRadiusSteps
}

// GetXAxisPort returns the x_axis_port value or the default.
func (c *TuningConfig) GetXAxisPort() string {
	if c.XAxisPort == nil || *c.XAxisPort == "" {
		return "/dev/ttyUSB0"
	}
	return *c.XAxisPort
}

// GetYAxisPort returns the y_axis_port value or the default.
func (c *TuningConfig) GetYAxisPort() string {
	if c.YAxisPort == nil || *c.YAxisPort == "" {
		return "/dev/ttyUSB1"
	}
	return *c.YAxisPort
}

// GetCameraQueueDepth returns the camera_queue_depth value or the default.
func (c *TuningConfig) GetCameraQueueDepth() int {
	if c.CameraQueueDepth == nil {
		return 128
	}
	return *c.CameraQueueDepth
}

// GetDisplayQueueDepth returns the display_queue_depth value or the default.
func (c *TuningConfig) GetDisplayQueueDepth() int {
	if c.DisplayQueueDepth == nil {
		return 16
	}
	return *c.DisplayQueueDepth
}

// GetOutputQueueDepth returns the output_queue_depth value or the default.
func (c *TuningConfig) GetOutputQueueDepth() int {
	if c.OutputQueueDepth == nil {
		return 1024
	}
	return *c.OutputQueueDepth
}
