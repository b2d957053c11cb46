package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BridgeConfig is the root configuration for the bridge daemon. All
// fields are optional pointers so a partial JSON file overrides only the
// values it names; the Get* accessors supply defaults for the rest.
type BridgeConfig struct {
	// Serial link params
	SerialPort   *string `json:"serial_port,omitempty"`
	BaudRate     *int    `json:"baud_rate,omitempty"`
	WriteTimeout *string `json:"write_timeout,omitempty"` // duration string like "1s"
	NoSerial     *bool   `json:"no_serial,omitempty"`

	// Streamer params
	FrameSkipRate *int    `json:"frame_skip_rate,omitempty"`
	GeometryFile  *string `json:"geometry_file,omitempty"`

	// Tracking source params
	TrackingListen *string `json:"tracking_listen,omitempty"`

	// Server and storage params
	Listen *string `json:"listen,omitempty"`
	DBFile *string `json:"db_file,omitempty"`
}

// EmptyBridgeConfig returns a BridgeConfig with all fields set to nil.
func EmptyBridgeConfig() *BridgeConfig {
	return &BridgeConfig{}
}

// LoadBridgeConfig loads a BridgeConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file fall back to the
// accessor defaults, so partial configs are safe.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBridgeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *BridgeConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.FrameSkipRate != nil && *c.FrameSkipRate < 0 {
		return fmt.Errorf("frame_skip_rate must be non-negative, got %d", *c.FrameSkipRate)
	}

	if c.WriteTimeout != nil && *c.WriteTimeout != "" {
		d, err := time.ParseDuration(*c.WriteTimeout)
		if err != nil {
			return fmt.Errorf("invalid write_timeout '%s': %w", *c.WriteTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("write_timeout must be positive, got %s", d)
		}
	}

	return nil
}

// GetSerialPort returns the serial_port value or the default.
func (c *BridgeConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0" // default
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *BridgeConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200 // default
	}
	return *c.BaudRate
}

// GetWriteTimeout parses and returns the WriteTimeout as a time.Duration.
func (c *BridgeConfig) GetWriteTimeout() time.Duration {
	if c.WriteTimeout == nil || *c.WriteTimeout == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.WriteTimeout)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetNoSerial returns the no_serial value or the default.
func (c *BridgeConfig) GetNoSerial() bool {
	if c.NoSerial == nil {
		return false // default: real serial port
	}
	return *c.NoSerial
}

// GetFrameSkipRate returns the frame_skip_rate value or the default.
func (c *BridgeConfig) GetFrameSkipRate() int {
	if c.FrameSkipRate == nil {
		return 10 // default
	}
	return *c.FrameSkipRate
}

// GetGeometryFile returns the geometry_file value, or empty to use the
// built-in platform geometry.
func (c *BridgeConfig) GetGeometryFile() string {
	if c.GeometryFile == nil {
		return ""
	}
	return *c.GeometryFile
}

// GetTrackingListen returns the tracking_listen value or the default.
func (c *BridgeConfig) GetTrackingListen() string {
	if c.TrackingListen == nil || *c.TrackingListen == "" {
		return ":5005" // default
	}
	return *c.TrackingListen
}

// GetListen returns the listen value or the default.
func (c *BridgeConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080" // default
	}
	return *c.Listen
}

// GetDBFile returns the db_file value or the default.
func (c *BridgeConfig) GetDBFile() string {
	if c.DBFile == nil || *c.DBFile == "" {
		return "bridge.db" // default
	}
	return *c.DBFile
}
