package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestProfilesAreValid(t *testing.T) {
	for _, name := range ProfileNames() {
		s, err := Profile(name)
		if err != nil {
			t.Fatalf("Profile(%q): %v", name, err)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("profile %q does not validate: %v", name, err)
		}
	}
}

func TestProfileUnknown(t *testing.T) {
	_, err := Profile("paddle_steamer")
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("Profile(unknown) error = %v, want ErrInvalidSettings", err)
	}
}

func TestEmptyConfigResolvesToDefaultProfile(t *testing.T) {
	got, err := EmptyConfig().RowerSettings()
	if err != nil {
		t.Fatalf("RowerSettings: %v", err)
	}
	if diff := cmp.Diff(DefaultProfile(), got); diff != "" {
		t.Errorf("RowerSettings() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "rower.json", `{
  "profile": "concept2_rowerg",
  "flank_length": 10,
  "drag_factor": 125,
  "auto_adjust_drag_factor": false,
  "source": "replay",
  "trace_file": "session.trace",
  "stall_timeout": "3s",
  "mqtt_broker": "tcp://localhost:1883"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetSource() != SourceReplay {
		t.Errorf("GetSource() = %q, want %q", cfg.GetSource(), SourceReplay)
	}
	if cfg.GetTraceFile() != "session.trace" {
		t.Errorf("GetTraceFile() = %q, want session.trace", cfg.GetTraceFile())
	}
	if cfg.GetStallTimeout() != 3*time.Second {
		t.Errorf("GetStallTimeout() = %v, want 3s", cfg.GetStallTimeout())
	}
	if cfg.GetMQTTBroker() != "tcp://localhost:1883" {
		t.Errorf("GetMQTTBroker() = %q", cfg.GetMQTTBroker())
	}

	s, err := cfg.RowerSettings()
	if err != nil {
		t.Fatalf("RowerSettings: %v", err)
	}
	want := Concept2RowErg()
	want.FlankLength = 10
	want.DragFactor = 125
	want.AutoAdjustDragFactor = false
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("RowerSettings() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	s, err := cfg.RowerSettings()
	if err != nil {
		t.Fatalf("defaults file does not resolve: %v", err)
	}
	if s.NumOfImpulsesPerRevolution != 6 {
		t.Errorf("defaults file should select the Concept2 profile, got %d impulses", s.NumOfImpulsesPerRevolution)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, "invalid.json", `{"flank_length": "twelve"`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "rower.yaml", "profile: default\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), ".json extension") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	data := make([]byte, 1024*1024+1)
	for i := range data {
		data[i] = ' '
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &Config{}},
		{name: "known profile", cfg: &Config{Profile: ptrString("concept2_rowerg")}},
		{name: "unknown profile", cfg: &Config{Profile: ptrString("nope")}, wantErr: true},
		{name: "serial source", cfg: &Config{Source: ptrString(SourceSerial)}},
		{name: "unknown source", cfg: &Config{Source: ptrString("bluetooth")}, wantErr: true},
		{name: "bad stall timeout", cfg: &Config{StallTimeout: ptrString("soon")}, wantErr: true},
		{name: "negative stall timeout", cfg: &Config{StallTimeout: ptrString("-1s")}, wantErr: true},
		{name: "bad debounce", cfg: &Config{Debounce: ptrString("2")}, wantErr: true},
		{name: "zero debounce", cfg: &Config{Debounce: ptrString("0s")}},
		{name: "zero publish interval", cfg: &Config{PublishInterval: ptrString("0s")}, wantErr: true},
		{name: "zero impulse buffer", cfg: &Config{ImpulseBuffer: ptrInt(0)}, wantErr: true},
		{name: "zero baud rate", cfg: &Config{SerialBaudRate: ptrInt(0)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRowerSettingsValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "flank too short", cfg: &Config{FlankLength: ptrInt(2)}},
		{name: "impulse window inverted", cfg: &Config{MinimumTimeBetweenImpulses: ptrFloat64(0.6)}},
		{name: "zero inertia", cfg: &Config{FlywheelInertia: ptrFloat64(0)}},
		{name: "drag quality above one", cfg: &Config{MinimumDragQuality: ptrFloat64(1.5)}},
		{name: "stroke quality negative", cfg: &Config{MinimumStrokeQuality: ptrFloat64(-0.1)}},
		{name: "margin of one", cfg: &Config{AutoAdjustRecoverySlopeMargin: ptrFloat64(1)}},
		{name: "pause shorter than impulse gap", cfg: &Config{MaximumStrokeTimeBeforePause: ptrFloat64(0.1)}},
		{name: "no smoothing", cfg: &Config{DragFactorSmoothing: ptrInt(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.RowerSettings()
			if !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("RowerSettings() error = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if got := cfg.GetProfile(); got != "default" {
		t.Errorf("GetProfile() = %q", got)
	}
	if got := cfg.GetSource(); got != SourceGPIO {
		t.Errorf("GetSource() = %q", got)
	}
	if got := cfg.GetGPIOPin(); got != "GPIO17" {
		t.Errorf("GetGPIOPin() = %q", got)
	}
	if got := cfg.GetSerialBaudRate(); got != 115200 {
		t.Errorf("GetSerialBaudRate() = %d", got)
	}
	if got := cfg.GetImpulseBuffer(); got != 256 {
		t.Errorf("GetImpulseBuffer() = %d", got)
	}
	if got := cfg.GetStallTimeout(); got != 6*time.Second {
		t.Errorf("GetStallTimeout() = %v", got)
	}
	if got := cfg.GetDebounce(); got != 2*time.Millisecond {
		t.Errorf("GetDebounce() = %v", got)
	}
	if got := cfg.GetPublishInterval(); got != time.Second {
		t.Errorf("GetPublishInterval() = %v", got)
	}
	if got := cfg.GetMQTTTopicPrefix(); got != "rowing" {
		t.Errorf("GetMQTTTopicPrefix() = %q", got)
	}
	if got := cfg.GetHTTPListen(); got != ":8080" {
		t.Errorf("GetHTTPListen() = %q", got)
	}
	if cfg.GetReplayRealtime() {
		t.Error("GetReplayRealtime() should default to false")
	}

	cfg.ReplayRealtime = ptrBool(true)
	if !cfg.GetReplayRealtime() {
		t.Error("GetReplayRealtime() should honour an explicit true")
	}
}
