package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyBridgeConfigDefaults(t *testing.T) {
	cfg := EmptyBridgeConfig()

	if got := cfg.GetSerialPort(); got != "/dev/ttyACM0" {
		t.Errorf("GetSerialPort() = %q, want /dev/ttyACM0", got)
	}
	if got := cfg.GetBaudRate(); got != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", got)
	}
	if got := cfg.GetWriteTimeout(); got != time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 1s", got)
	}
	if cfg.GetNoSerial() {
		t.Error("GetNoSerial() = true, want false")
	}
	if got := cfg.GetFrameSkipRate(); got != 10 {
		t.Errorf("GetFrameSkipRate() = %d, want 10", got)
	}
	if got := cfg.GetGeometryFile(); got != "" {
		t.Errorf("GetGeometryFile() = %q, want empty", got)
	}
	if got := cfg.GetTrackingListen(); got != ":5005" {
		t.Errorf("GetTrackingListen() = %q, want :5005", got)
	}
	if got := cfg.GetListen(); got != ":8080" {
		t.Errorf("GetListen() = %q, want :8080", got)
	}
	if got := cfg.GetDBFile(); got != "bridge.db" {
		t.Errorf("GetDBFile() = %q, want bridge.db", got)
	}
}

func TestLoadBridgeConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bridge.json")

	testJSON := `{
  "serial_port": "/dev/ttyUSB1",
  "baud_rate": 9600,
  "write_timeout": "250ms",
  "no_serial": true,
  "frame_skip_rate": 4,
  "listen": ":9090"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadBridgeConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetSerialPort() != "/dev/ttyUSB1" {
		t.Errorf("GetSerialPort() = %q, want /dev/ttyUSB1", cfg.GetSerialPort())
	}
	if cfg.GetBaudRate() != 9600 {
		t.Errorf("GetBaudRate() = %d, want 9600", cfg.GetBaudRate())
	}
	if cfg.GetWriteTimeout() != 250*time.Millisecond {
		t.Errorf("GetWriteTimeout() = %v, want 250ms", cfg.GetWriteTimeout())
	}
	if !cfg.GetNoSerial() {
		t.Error("GetNoSerial() = false, want true")
	}
	if cfg.GetFrameSkipRate() != 4 {
		t.Errorf("GetFrameSkipRate() = %d, want 4", cfg.GetFrameSkipRate())
	}
	if cfg.GetListen() != ":9090" {
		t.Errorf("GetListen() = %q, want :9090", cfg.GetListen())
	}

	// Fields omitted from the file fall back to defaults.
	if cfg.GetDBFile() != "bridge.db" {
		t.Errorf("GetDBFile() = %q, want bridge.db", cfg.GetDBFile())
	}
	if cfg.GetTrackingListen() != ":5005" {
		t.Errorf("GetTrackingListen() = %q, want :5005", cfg.GetTrackingListen())
	}
}

func TestLoadBridgeConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bridge.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadBridgeConfig(path); err == nil {
			t.Error("Expected error for non-JSON extension")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadBridgeConfig(filepath.Join(tmpDir, "nope.json")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadBridgeConfig(path); err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})
}

func TestValidate(t *testing.T) {
	negBaud := -1
	negSkip := -2
	badTimeout := "soon"
	zeroTimeout := "0s"

	cases := []struct {
		name    string
		cfg     BridgeConfig
		wantErr bool
	}{
		{"empty", BridgeConfig{}, false},
		{"negative baud", BridgeConfig{BaudRate: &negBaud}, true},
		{"negative skip rate", BridgeConfig{FrameSkipRate: &negSkip}, true},
		{"unparseable timeout", BridgeConfig{WriteTimeout: &badTimeout}, true},
		{"zero timeout", BridgeConfig{WriteTimeout: &zeroTimeout}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
