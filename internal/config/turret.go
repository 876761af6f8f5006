package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/geom"
	"github.com/banshee-data/turret.aim/internal/spatial"
)

// VectorConfig is a translation in the JSON calibration schema.
type VectorConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuaternionConfig is a rotation in the JSON calibration schema, w-first.
type QuaternionConfig struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TransformConfig is one static calibration transform: the measured
// offset and orientation between two frames of the turret's chain.
type TransformConfig struct {
	Translation VectorConfig     `json:"translation"`
	Rotation    QuaternionConfig `json:"rotation"`
}

func (t TransformConfig) vec() r3.Vec {
	return r3.Vec{X: t.Translation.X, Y: t.Translation.Y, Z: t.Translation.Z}
}

func (t TransformConfig) rot() quat.Number {
	return quat.Number{Real: t.Rotation.W, Imag: t.Rotation.X, Jmag: t.Rotation.Y, Kmag: t.Rotation.Z}
}

func (t TransformConfig) validate(name string) error {
	q := t.rot()
	if quat.Abs(q) == 0 {
		return fmt.Errorf("%s rotation is the zero quaternion", name)
	}
	return nil
}

func identityTransformConfig() *TransformConfig {
	return &TransformConfig{Rotation: QuaternionConfig{W: 1}}
}

// TurretConfig is the root configuration for the aiming pipeline. All
// fields are optional in the JSON file; the Get* methods provide fallback
// defaults for anything omitted, so partial configs are safe.
type TurretConfig struct {
	// Team and detection filtering
	TeamColor         *string  `json:"team_color,omitempty"`
	DedupIoUThreshold *float64 `json:"dedup_iou_threshold,omitempty"`
	PruneMinWidth     *float64 `json:"prune_min_width,omitempty"`
	PruneMinHeight    *float64 `json:"prune_min_height,omitempty"`

	// Telemetry history retention
	BufferMaxEntries *int    `json:"buffer_max_entries,omitempty"`
	BufferMaxAge     *string `json:"buffer_max_age,omitempty"`    // duration string like "2s"
	BufferTolerance  *string `json:"buffer_tolerance,omitempty"`  // duration string like "50ms"
	TelemetryOffset  *string `json:"telemetry_offset,omitempty"`  // board-to-camera clock skew

	// Serial link to the control board
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`

	// Camera model
	CameraFx *float64 `json:"camera_fx,omitempty"`
	CameraFy *float64 `json:"camera_fy,omitempty"`
	CameraCx *float64 `json:"camera_cx,omitempty"`
	CameraCy *float64 `json:"camera_cy,omitempty"`

	// Depth estimation
	DefaultDepthMeters *float64 `json:"default_depth_meters,omitempty"`
	PlateWidthMeters   *float64 `json:"plate_width_meters,omitempty"`

	// Static frame calibration
	TurretToBase    *TransformConfig `json:"turret_to_base,omitempty"`
	PitchToCamera   *TransformConfig `json:"pitch_to_camera,omitempty"`
	PitchToLauncher *TransformConfig `json:"pitch_to_launcher,omitempty"`

	// Server and persistence
	ListenAddr *string `json:"listen_addr,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTurretConfig returns a TurretConfig with all fields set to nil, so
// every accessor falls back to its default.
func EmptyTurretConfig() *TurretConfig {
	return &TurretConfig{}
}

// LoadTurretConfig loads a TurretConfig from a JSON file. The file must
// have a .json extension and be under the max file size.
func LoadTurretConfig(path string) (*TurretConfig, error) {
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

	cfg := EmptyTurretConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that every set field holds a usable value.
func (c *TurretConfig) Validate() error {
	if c.TeamColor != nil {
		if *c.TeamColor != "red" && *c.TeamColor != "blue" {
			return fmt.Errorf("team_color must be \"red\" or \"blue\", got %q", *c.TeamColor)
		}
	}

	if c.DedupIoUThreshold != nil {
		if *c.DedupIoUThreshold < 0 || *c.DedupIoUThreshold > 1 {
			return fmt.Errorf("dedup_iou_threshold must be between 0 and 1, got %f", *c.DedupIoUThreshold)
		}
	}

	if c.BufferMaxEntries != nil && *c.BufferMaxEntries <= 0 {
		return fmt.Errorf("buffer_max_entries must be positive, got %d", *c.BufferMaxEntries)
	}

	for name, v := range map[string]*string{
		"buffer_max_age":   c.BufferMaxAge,
		"buffer_tolerance": c.BufferTolerance,
		"telemetry_offset": c.TelemetryOffset,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	for name, v := range map[string]*float64{
		"camera_fx": c.CameraFx,
		"camera_fy": c.CameraFy,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.DefaultDepthMeters != nil && *c.DefaultDepthMeters <= 0 {
		return fmt.Errorf("default_depth_meters must be positive, got %f", *c.DefaultDepthMeters)
	}
	if c.PlateWidthMeters != nil && *c.PlateWidthMeters <= 0 {
		return fmt.Errorf("plate_width_meters must be positive, got %f", *c.PlateWidthMeters)
	}

	for name, t := range map[string]*TransformConfig{
		"turret_to_base":    c.TurretToBase,
		"pitch_to_camera":   c.PitchToCamera,
		"pitch_to_launcher": c.PitchToLauncher,
	} {
		if t != nil {
			if err := t.validate(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetTeamColor returns the team_color value or the default.
func (c *TurretConfig) GetTeamColor() string {
	if c.TeamColor == nil {
		return "red"
	}
	return *c.TeamColor
}

// GetDedupIoUThreshold returns the dedup_iou_threshold value or the default.
func (c *TurretConfig) GetDedupIoUThreshold() float64 {
	if c.DedupIoUThreshold == nil {
		return 0.5
	}
	return *c.DedupIoUThreshold
}

// GetPruneMinWidth returns the prune_min_width value or the default.
func (c *TurretConfig) GetPruneMinWidth() float64 {
	if c.PruneMinWidth == nil {
		return 4.0
	}
	return *c.PruneMinWidth
}

// GetPruneMinHeight returns the prune_min_height value or the default.
func (c *TurretConfig) GetPruneMinHeight() float64 {
	if c.PruneMinHeight == nil {
		return 4.0
	}
	return *c.PruneMinHeight
}

// GetBufferMaxEntries returns the buffer_max_entries value or the default.
func (c *TurretConfig) GetBufferMaxEntries() int {
	if c.BufferMaxEntries == nil {
		return 512
	}
	return *c.BufferMaxEntries
}

// GetBufferMaxAge parses and returns the buffer_max_age as a time.Duration.
func (c *TurretConfig) GetBufferMaxAge() time.Duration {
	return c.duration(c.BufferMaxAge, 2*time.Second)
}

// GetBufferTolerance parses and returns the buffer_tolerance as a time.Duration.
func (c *TurretConfig) GetBufferTolerance() time.Duration {
	return c.duration(c.BufferTolerance, 50*time.Millisecond)
}

// GetTelemetryOffset parses and returns the telemetry_offset as a time.Duration.
func (c *TurretConfig) GetTelemetryOffset() time.Duration {
	return c.duration(c.TelemetryOffset, 0)
}

func (c *TurretConfig) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// GetSerialPort returns the serial_port value or the default.
func (c *TurretConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *TurretConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 460800
	}
	return *c.BaudRate
}

// GetCameraFx returns the camera_fx value or the default.
func (c *TurretConfig) GetCameraFx() float64 {
	if c.CameraFx == nil {
		return 900.0
	}
	return *c.CameraFx
}

// GetCameraFy returns the camera_fy value or the default.
func (c *TurretConfig) GetCameraFy() float64 {
	if c.CameraFy == nil {
		return 900.0
	}
	return *c.CameraFy
}

// GetCameraCx returns the camera_cx value or the default.
func (c *TurretConfig) GetCameraCx() float64 {
	if c.CameraCx == nil {
		return 640.0
	}
	return *c.CameraCx
}

// GetCameraCy returns the camera_cy value or the default.
func (c *TurretConfig) GetCameraCy() float64 {
	if c.CameraCy == nil {
		return 360.0
	}
	return *c.CameraCy
}

// GetDefaultDepthMeters returns the default_depth_meters value or the default.
func (c *TurretConfig) GetDefaultDepthMeters() float64 {
	if c.DefaultDepthMeters == nil {
		return 3.0
	}
	return *c.DefaultDepthMeters
}

// GetPlateWidthMeters returns the plate_width_meters value or the default.
func (c *TurretConfig) GetPlateWidthMeters() float64 {
	if c.PlateWidthMeters == nil {
		return 0.135
	}
	return *c.PlateWidthMeters
}

// GetListenAddr returns the listen_addr value or the default.
func (c *TurretConfig) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetDBPath returns the db_path value or the default.
func (c *TurretConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "turret.db"
	}
	return *c.DBPath
}

// GetCalibration builds the typed static-transform set from the
// configured calibration blocks. Unset blocks default to identity.
func (c *TurretConfig) GetCalibration() spatial.Calibration {
	tb := c.TurretToBase
	if tb == nil {
		tb = identityTransformConfig()
	}
	pc := c.PitchToCamera
	if pc == nil {
		pc = identityTransformConfig()
	}
	pl := c.PitchToLauncher
	if pl == nil {
		pl = identityTransformConfig()
	}
	return spatial.Calibration{
		TurretToBase:    spatial.NewTransform[geom.TurretRefFrame, geom.BaseRefFrame](tb.vec(), tb.rot()),
		PitchToCamera:   spatial.NewTransform[geom.PitchRefFrame, geom.CameraFrame](pc.vec(), pc.rot()),
		PitchToLauncher: spatial.NewTransform[geom.PitchRefFrame, geom.LauncherFrame](pl.vec(), pl.rot()),
	}
}
