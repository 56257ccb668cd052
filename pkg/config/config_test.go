package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dougsko/rigsync/pkg/rig"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary directory for test files
	tempDir, err := os.MkdirTemp("", "rigsync-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
station:
  callsign: "K3DEP"

radio:
  model: 2
  port: "localhost:4532"
  refresh_interval: 20
  call_timeout: 500
  full_poll: true
  auto_power_on: true
  secondary_meter: "ALC"

web:
  port: 9090

mqtt:
  enabled: true
  mode: external
  broker: "mqtt://broker.local:1883"

storage:
  database_path: "/tmp/rigsync.db"
  max_events: 5000

logging:
  level: "debug"
  file: "/var/log/rigsync.log"
  console: true
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Station.Callsign != "K3DEP" {
			t.Errorf("Expected callsign K3DEP, got %s", config.Station.Callsign)
		}
		if config.Radio.Model != rig.ModelNetRigctl {
			t.Errorf("Expected radio model 2, got %d", config.Radio.Model)
		}
		if config.Radio.RefreshInterval != 20 {
			t.Errorf("Expected refresh interval 20, got %d", config.Radio.RefreshInterval)
		}
		if !config.Radio.FullPoll {
			t.Error("Expected full poll enabled")
		}
		if config.Web.Port != 9090 {
			t.Errorf("Expected web port 9090, got %d", config.Web.Port)
		}
		if config.MQTT.Mode != MQTTExternal {
			t.Errorf("Expected external mqtt mode, got %s", config.MQTT.Mode)
		}
		if config.Storage.MaxEvents != 5000 {
			t.Errorf("Expected max events 5000, got %d", config.Storage.MaxEvents)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("Expected log level debug, got %s", config.Logging.Level)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})

	t.Run("Config With Defaults", func(t *testing.T) {
		configContent := `
station:
  callsign: "N0ABC"
`
		configPath := filepath.Join(tempDir, "minimal.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Radio.Model != rig.ModelDummy {
			t.Errorf("Expected default radio model 1, got %d", config.Radio.Model)
		}
		if config.Radio.BaudRate != 9600 {
			t.Errorf("Expected default baud rate 9600, got %d", config.Radio.BaudRate)
		}
		if config.Radio.DataBits != 8 || config.Radio.StopBits != 1 {
			t.Errorf("Expected 8N1 framing, got %d/%d", config.Radio.DataBits, config.Radio.StopBits)
		}
		if config.Radio.RefreshInterval != 100 {
			t.Errorf("Expected default refresh interval 100, got %d", config.Radio.RefreshInterval)
		}
		if config.Radio.CallTimeout != 1000 {
			t.Errorf("Expected default call timeout 1000, got %d", config.Radio.CallTimeout)
		}
		if config.Radio.SecondaryMeter != "SWR" {
			t.Errorf("Expected default secondary meter SWR, got %s", config.Radio.SecondaryMeter)
		}
		if config.Web.Port != 8080 {
			t.Errorf("Expected default web port 8080, got %d", config.Web.Port)
		}
		if config.Web.BindAddress != "0.0.0.0" {
			t.Errorf("Expected default bind address 0.0.0.0, got %s", config.Web.BindAddress)
		}
		if config.MQTT.TopicPrefix != "rigsync" {
			t.Errorf("Expected default topic prefix rigsync, got %s", config.MQTT.TopicPrefix)
		}
		if config.Storage.MaxEvents != 10000 {
			t.Errorf("Expected default max events 10000, got %d", config.Storage.MaxEvents)
		}
		if config.Logging.Level != "info" {
			t.Errorf("Expected default log level info, got %s", config.Logging.Level)
		}
		if !config.Logging.Console {
			t.Error("Expected console logging when no file is set")
		}
		if config.Logging.MaxSize != 100 {
			t.Errorf("Expected default log max size 100, got %d", config.Logging.MaxSize)
		}
		if config.Logging.MaxBackups != 5 {
			t.Errorf("Expected default log max backups 5, got %d", config.Logging.MaxBackups)
		}
		if config.Logging.MaxAge != 30 {
			t.Errorf("Expected default log max age 30, got %d", config.Logging.MaxAge)
		}
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("Expected error for nonexistent file, got nil")
		}
		if !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Expected 'failed to read config file' error, got: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		configContent := `
station:
  callsign: [invalid yaml structure
`
		configPath := filepath.Join(tempDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		_, err := LoadConfig(configPath)
		if err == nil {
			t.Fatal("Expected error for invalid YAML, got nil")
		}
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected 'failed to parse config file' error, got: %v", err)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "empty.yaml")
		if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
			t.Fatalf("Failed to write empty config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error for empty file, got: %v", err)
		}
		if config.Radio.RefreshInterval != 100 {
			t.Errorf("Expected defaults for empty file, got refresh %d", config.Radio.RefreshInterval)
		}
	})

	t.Run("Save And Reload", func(t *testing.T) {
		config := Default()
		config.Station.Callsign = "W1AW"
		config.Radio.FullPoll = true

		configPath := filepath.Join(tempDir, "saved.yaml")
		if err := config.SaveConfig(configPath); err != nil {
			t.Fatalf("SaveConfig: %v", err)
		}
		back, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if back.Station.Callsign != "W1AW" || !back.Radio.FullPoll {
			t.Errorf("Saved values not reloaded: %+v", back.Radio)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Dummy Rig Without Port", func(t *testing.T) {
		config := Default()
		if err := config.Validate(); err != nil {
			t.Errorf("Expected no error for dummy rig without port, got: %v", err)
		}
	})

	t.Run("Unknown Model", func(t *testing.T) {
		config := Default()
		config.Radio.Model = 999999
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), "not available") {
			t.Errorf("Expected model error, got: %v", err)
		}
	})

	t.Run("Invalid Parity", func(t *testing.T) {
		config := Default()
		config.Radio.Parity = "sometimes"
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), "invalid parity") {
			t.Errorf("Expected parity error, got: %v", err)
		}
	})

	t.Run("Refresh Too Fast", func(t *testing.T) {
		config := Default()
		config.Radio.RefreshInterval = 1
		if err := config.Validate(); err == nil {
			t.Error("Expected error for 1ms refresh interval")
		}
	})

	t.Run("External MQTT Without Broker", func(t *testing.T) {
		config := Default()
		config.MQTT.Enabled = true
		config.MQTT.Mode = MQTTExternal
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), "mqtt broker is required") {
			t.Errorf("Expected broker error, got: %v", err)
		}
	})
}

func TestConnectionConfig(t *testing.T) {
	config := Default()
	config.Radio.Port = "/dev/ttyUSB0"
	config.Radio.Parity = "EVEN"
	config.Radio.Handshake = "hardware"
	config.Radio.CIVAddress = 0x94
	config.Radio.RefreshInterval = 20

	cc := config.ConnectionConfig()
	if cc.Parity != rig.ParityEven {
		t.Errorf("Expected even parity, got %s", cc.Parity)
	}
	if cc.Handshake != rig.HandshakeHardware {
		t.Errorf("Expected hardware handshake, got %s", cc.Handshake)
	}
	if cc.CIVAddress != 0x94 {
		t.Errorf("Expected CI-V address 0x94, got %#x", cc.CIVAddress)
	}
	if cc.RefreshInterval != 20*time.Millisecond {
		t.Errorf("Expected 20ms refresh, got %v", cc.RefreshInterval)
	}
	if cc.CallTimeout != time.Second {
		t.Errorf("Expected 1s call timeout, got %v", cc.CallTimeout)
	}
	if cc.IsNetwork() {
		t.Error("serial port reported as network")
	}
}
