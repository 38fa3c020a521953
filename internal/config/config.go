package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical rower defaults file.
const DefaultConfigPath = "config/rower.defaults.json"

// Impulse sources understood by cmd/rower.
const (
	SourceGPIO   = "gpio"
	SourceSerial = "serial"
	SourceReplay = "replay"
)

// Config is the root configuration file. Machine fields override the
// selected profile; runtime fields configure the process around the engine.
// Every field is optional and falls back to a default through its Get*
// accessor, so partial files are safe.
type Config struct {
	Profile *string `json:"profile,omitempty"`

	// Machine overrides
	NumOfImpulsesPerRevolution    *int     `json:"num_of_impulses_per_revolution,omitempty"`
	SprocketRadius                *float64 `json:"sprocket_radius,omitempty"`
	FlywheelInertia               *float64 `json:"flywheel_inertia,omitempty"`
	MagicConstant                 *float64 `json:"magic_constant,omitempty"`
	MinimumTimeBetweenImpulses    *float64 `json:"minimum_time_between_impulses,omitempty"`
	MaximumTimeBetweenImpulses    *float64 `json:"maximum_time_between_impulses,omitempty"`
	MinimumDriveTime              *float64 `json:"minimum_drive_time,omitempty"`
	MinimumRecoveryTime           *float64 `json:"minimum_recovery_time,omitempty"`
	MaximumStrokeTimeBeforePause  *float64 `json:"maximum_stroke_time_before_pause,omitempty"`
	FlankLength                   *int     `json:"flank_length,omitempty"`
	Smoothing                     *int     `json:"smoothing,omitempty"`
	DragFactor                    *float64 `json:"drag_factor,omitempty"`
	AutoAdjustDragFactor          *bool    `json:"auto_adjust_drag_factor,omitempty"`
	MinimumDragQuality            *float64 `json:"minimum_drag_quality,omitempty"`
	DragFactorSmoothing           *int     `json:"drag_factor_smoothing,omitempty"`
	MinimumForceBeforeStroke      *float64 `json:"minimum_force_before_stroke,omitempty"`
	MinimumStrokeQuality          *float64 `json:"minimum_stroke_quality,omitempty"`
	MinimumRecoverySlope          *float64 `json:"minimum_recovery_slope,omitempty"`
	AutoAdjustRecoverySlope       *bool    `json:"auto_adjust_recovery_slope,omitempty"`
	AutoAdjustRecoverySlopeMargin *float64 `json:"auto_adjust_recovery_slope_margin,omitempty"`

	// Impulse source
	Source         *string `json:"source,omitempty"` // gpio, serial or replay
	GPIOPin        *string `json:"gpio_pin,omitempty"`
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	TraceFile      *string `json:"trace_file,omitempty"`
	ReplayRealtime *bool   `json:"replay_realtime,omitempty"`
	ImpulseBuffer  *int    `json:"impulse_buffer,omitempty"`
	StallTimeout   *string `json:"stall_timeout,omitempty"` // duration string like "6s"
	Debounce       *string `json:"debounce,omitempty"`      // minimum edge spacing, like "2ms"

	// Session
	PublishInterval *string `json:"publish_interval,omitempty"` // duration string like "1s"

	// Outputs
	DBPath          *string `json:"db_path,omitempty"`
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty"`
	MQTTClientID    *string `json:"mqtt_client_id,omitempty"`
	HTTPListen      *string `json:"http_listen,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*Config, error) {
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

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/rowing/rower/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that can be checked in isolation. Cross-field
// machine constraints are checked by RowerSettings.
func (c *Config) Validate() error {
	if c.Profile != nil {
		if _, err := Profile(*c.Profile); err != nil {
			return err
		}
	}

	if c.Source != nil {
		switch *c.Source {
		case SourceGPIO, SourceSerial, SourceReplay:
		default:
			return fmt.Errorf("source must be one of %q, %q, %q, got %q", SourceGPIO, SourceSerial, SourceReplay, *c.Source)
		}
	}

	if c.StallTimeout != nil && *c.StallTimeout != "" {
		d, err := time.ParseDuration(*c.StallTimeout)
		if err != nil {
			return fmt.Errorf("invalid stall_timeout '%s': %w", *c.StallTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("stall_timeout must be positive, got %s", d)
		}
	}

	if c.Debounce != nil && *c.Debounce != "" {
		d, err := time.ParseDuration(*c.Debounce)
		if err != nil {
			return fmt.Errorf("invalid debounce '%s': %w", *c.Debounce, err)
		}
		if d < 0 {
			return fmt.Errorf("debounce must not be negative, got %s", d)
		}
	}

	if c.PublishInterval != nil && *c.PublishInterval != "" {
		d, err := time.ParseDuration(*c.PublishInterval)
		if err != nil {
			return fmt.Errorf("invalid publish_interval '%s': %w", *c.PublishInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("publish_interval must be positive, got %s", d)
		}
	}

	if c.ImpulseBuffer != nil && *c.ImpulseBuffer < 1 {
		return fmt.Errorf("impulse_buffer must be at least 1, got %d", *c.ImpulseBuffer)
	}

	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}

	return nil
}

// RowerSettings resolves the selected profile with the machine overrides
// applied and validates the result.
func (c *Config) RowerSettings() (RowerSettings, error) {
	s, err := Profile(c.GetProfile())
	if err != nil {
		return RowerSettings{}, err
	}

	overrideInt(&s.NumOfImpulsesPerRevolution, c.NumOfImpulsesPerRevolution)
	overrideFloat(&s.SprocketRadius, c.SprocketRadius)
	overrideFloat(&s.FlywheelInertia, c.FlywheelInertia)
	overrideFloat(&s.MagicConstant, c.MagicConstant)
	overrideFloat(&s.MinimumTimeBetweenImpulses, c.MinimumTimeBetweenImpulses)
	overrideFloat(&s.MaximumTimeBetweenImpulses, c.MaximumTimeBetweenImpulses)
	overrideFloat(&s.MinimumDriveTime, c.MinimumDriveTime)
	overrideFloat(&s.MinimumRecoveryTime, c.MinimumRecoveryTime)
	overrideFloat(&s.MaximumStrokeTimeBeforePause, c.MaximumStrokeTimeBeforePause)
	overrideInt(&s.FlankLength, c.FlankLength)
	overrideInt(&s.Smoothing, c.Smoothing)
	overrideFloat(&s.DragFactor, c.DragFactor)
	overrideBool(&s.AutoAdjustDragFactor, c.AutoAdjustDragFactor)
	overrideFloat(&s.MinimumDragQuality, c.MinimumDragQuality)
	overrideInt(&s.DragFactorSmoothing, c.DragFactorSmoothing)
	overrideFloat(&s.MinimumForceBeforeStroke, c.MinimumForceBeforeStroke)
	overrideFloat(&s.MinimumStrokeQuality, c.MinimumStrokeQuality)
	overrideFloat(&s.MinimumRecoverySlope, c.MinimumRecoverySlope)
	overrideBool(&s.AutoAdjustRecoverySlope, c.AutoAdjustRecoverySlope)
	overrideFloat(&s.AutoAdjustRecoverySlopeMargin, c.AutoAdjustRecoverySlopeMargin)

	if err := s.Validate(); err != nil {
		return RowerSettings{}, err
	}
	return s, nil
}

func overrideFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func overrideInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func overrideBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// GetProfile returns the profile name or the default.
func (c *Config) GetProfile() string {
	if c.Profile == nil || *c.Profile == "" {
		return "default"
	}
	return *c.Profile
}

// GetSource returns the impulse source or the default.
func (c *Config) GetSource() string {
	if c.Source == nil || *c.Source == "" {
		return SourceGPIO
	}
	return *c.Source
}

// GetGPIOPin returns the gpio_pin value or the default.
func (c *Config) GetGPIOPin() string {
	if c.GPIOPin == nil {
		return "GPIO17"
	}
	return *c.GPIOPin
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *Config) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetTraceFile returns the trace_file value or the default.
func (c *Config) GetTraceFile() string {
	if c.TraceFile == nil {
		return ""
	}
	return *c.TraceFile
}

// GetReplayRealtime returns the replay_realtime value or the default.
func (c *Config) GetReplayRealtime() bool {
	if c.ReplayRealtime == nil {
		return false
	}
	return *c.ReplayRealtime
}

// GetImpulseBuffer returns the impulse_buffer value or the default.
func (c *Config) GetImpulseBuffer() int {
	if c.ImpulseBuffer == nil {
		return 256
	}
	return *c.ImpulseBuffer
}

// GetStallTimeout parses and returns the StallTimeout as a time.Duration.
func (c *Config) GetStallTimeout() time.Duration {
	if c.StallTimeout == nil || *c.StallTimeout == "" {
		return 6 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StallTimeout)
	if err != nil {
		return 6 * time.Second // default on parse error
	}
	return d
}

// GetDebounce parses and returns the Debounce as a time.Duration.
func (c *Config) GetDebounce() time.Duration {
	if c.Debounce == nil || *c.Debounce == "" {
		return 2 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.Debounce)
	if err != nil {
		return 2 * time.Millisecond // default on parse error
	}
	return d
}

// GetPublishInterval parses and returns the PublishInterval as a time.Duration.
func (c *Config) GetPublishInterval() time.Duration {
	if c.PublishInterval == nil || *c.PublishInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.PublishInterval)
	if err != nil || d <= 0 {
		return time.Second // default on parse error
	}
	return d
}

// GetDBPath returns the db_path value or the default. Empty disables the
// stroke recorder.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "rowing.db"
	}
	return *c.DBPath
}

// GetMQTTBroker returns the mqtt_broker value or the default. Empty
// disables MQTT publishing.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopicPrefix returns the mqtt_topic_prefix value or the default.
func (c *Config) GetMQTTTopicPrefix() string {
	if c.MQTTTopicPrefix == nil || *c.MQTTTopicPrefix == "" {
		return "rowing"
	}
	return *c.MQTTTopicPrefix
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *Config) GetMQTTClientID() string {
	if c.MQTTClientID == nil || *c.MQTTClientID == "" {
		return "rowing-report"
	}
	return *c.MQTTClientID
}

// GetHTTPListen returns the http_listen value or the default.
func (c *Config) GetHTTPListen() string {
	if c.HTTPListen == nil {
		return ":8080"
	}
	return *c.HTTPListen
}
