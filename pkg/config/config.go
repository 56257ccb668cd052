package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dougsko/rigsync/pkg/rig"
)

// Config represents the rigsync configuration
type Config struct {
	Station StationConfig `yaml:"station"`
	Radio   RadioConfig   `yaml:"radio"`
	Web     WebConfig     `yaml:"web"`
	API     APIConfig     `yaml:"api"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// StationConfig identifies the operator
type StationConfig struct {
	Callsign string `yaml:"callsign"`
}

// RadioConfig describes the transceiver and how to talk to it
type RadioConfig struct {
	Model      int    `yaml:"model"`
	Port       string `yaml:"port"`
	BaudRate   int    `yaml:"baud_rate"`
	DataBits   int    `yaml:"data_bits"`
	Parity     string `yaml:"parity"`
	StopBits   int    `yaml:"stop_bits"`
	Handshake  string `yaml:"handshake"`
	CIVAddress int    `yaml:"civ_address"`

	// Scheduler behaviour, intervals in milliseconds
	RefreshInterval int  `yaml:"refresh_interval"`
	CallTimeout     int  `yaml:"call_timeout"`
	FullPoll        bool `yaml:"full_poll"`
	AutoConnect     bool `yaml:"auto_connect"`
	AutoPowerOn     bool `yaml:"auto_power_on"`

	SecondaryMeter string `yaml:"secondary_meter"`
	ProfilesDir    string `yaml:"profiles_dir"`
}

// WebConfig is the REST/WebSocket listener
type WebConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
}

// APIConfig is the local control socket
type APIConfig struct {
	UnixSocket string `yaml:"unix_socket"`
}

// MQTTConfig selects the MQTT bridge. In embedded mode rigsync runs its own
// broker on Address; in external mode it connects to Broker.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Mode        string `yaml:"mode"`
	Address     string `yaml:"address"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// StorageConfig is the event store
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	MaxEvents    int    `yaml:"max_events"`
}

// LoggingConfig controls the log sinks
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	Structured bool   `yaml:"structured"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// MQTT bridge modes
const (
	MQTTEmbedded = "embedded"
	MQTTExternal = "external"
)

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Radio.Model == 0 {
		c.Radio.Model = rig.ModelDummy
	}
	if c.Radio.BaudRate == 0 {
		c.Radio.BaudRate = 9600
	}
	if c.Radio.DataBits == 0 {
		c.Radio.DataBits = 8
	}
	if c.Radio.StopBits == 0 {
		c.Radio.StopBits = 1
	}
	if c.Radio.Parity == "" {
		c.Radio.Parity = string(rig.ParityNone)
	}
	if c.Radio.Handshake == "" {
		c.Radio.Handshake = string(rig.HandshakeNone)
	}
	if c.Radio.RefreshInterval == 0 {
		c.Radio.RefreshInterval = 100
	}
	if c.Radio.CallTimeout == 0 {
		c.Radio.CallTimeout = 1000
	}
	if c.Radio.SecondaryMeter == "" {
		c.Radio.SecondaryMeter = string(rig.MeterSWR)
	}
	if c.Radio.ProfilesDir == "" {
		c.Radio.ProfilesDir = "profiles"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/rigsync.sock"
	}
	if c.MQTT.Mode == "" {
		c.MQTT.Mode = MQTTEmbedded
	}
	if c.MQTT.Address == "" {
		c.MQTT.Address = ":1883"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "rigsync"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "rigsyncd"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "rigsync.db"
	}
	if c.Storage.MaxEvents == 0 {
		c.Storage.MaxEvents = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" && !c.Logging.Console {
		c.Logging.Console = true
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 30
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, ok := rig.LookupModel(c.Radio.Model); !ok {
		return fmt.Errorf("radio model %d is not available", c.Radio.Model)
	}
	cc := c.ConnectionConfig()
	if c.Radio.Model != rig.ModelDummy && !cc.IsNetwork() && c.Radio.Port == "" {
		return fmt.Errorf("radio port is required for model %d", c.Radio.Model)
	}
	switch rig.Parity(strings.ToLower(c.Radio.Parity)) {
	case rig.ParityNone, rig.ParityEven, rig.ParityOdd, rig.ParityMark, rig.ParitySpace:
	default:
		return fmt.Errorf("invalid parity %q", c.Radio.Parity)
	}
	switch rig.Handshake(strings.ToLower(c.Radio.Handshake)) {
	case rig.HandshakeNone, rig.HandshakeHardware, rig.HandshakeSoftware:
	default:
		return fmt.Errorf("invalid handshake %q", c.Radio.Handshake)
	}
	if c.Radio.DataBits < 5 || c.Radio.DataBits > 8 {
		return fmt.Errorf("invalid data bits %d", c.Radio.DataBits)
	}
	if c.Radio.StopBits != 1 && c.Radio.StopBits != 2 {
		return fmt.Errorf("invalid stop bits %d", c.Radio.StopBits)
	}
	if c.Radio.RefreshInterval < 10 {
		return fmt.Errorf("refresh interval must be at least 10ms, got %d", c.Radio.RefreshInterval)
	}
	if c.Radio.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	if _, err := rig.ParseMeter(c.Radio.SecondaryMeter); err != nil {
		return fmt.Errorf("invalid secondary meter: %w", err)
	}
	if c.MQTT.Enabled {
		switch c.MQTT.Mode {
		case MQTTEmbedded:
		case MQTTExternal:
			if c.MQTT.Broker == "" {
				return fmt.Errorf("mqtt broker is required in external mode")
			}
		default:
			return fmt.Errorf("invalid mqtt mode %q", c.MQTT.Mode)
		}
	}
	return nil
}

// ConnectionConfig builds the descriptor consumed by rig.Connect
func (c *Config) ConnectionConfig() rig.ConnectionConfig {
	return rig.ConnectionConfig{
		Model:           c.Radio.Model,
		Port:            c.Radio.Port,
		BaudRate:        c.Radio.BaudRate,
		DataBits:        c.Radio.DataBits,
		Parity:          rig.Parity(strings.ToLower(c.Radio.Parity)),
		StopBits:        c.Radio.StopBits,
		Handshake:       rig.Handshake(strings.ToLower(c.Radio.Handshake)),
		CIVAddress:      c.Radio.CIVAddress,
		RefreshInterval: time.Duration(c.Radio.RefreshInterval) * time.Millisecond,
		CallTimeout:     time.Duration(c.Radio.CallTimeout) * time.Millisecond,
		FullPoll:        c.Radio.FullPoll,
		AutoConnect:     c.Radio.AutoConnect,
		AutoPowerOn:     c.Radio.AutoPowerOn,
	}
}

// SaveConfig writes the configuration as YAML
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
