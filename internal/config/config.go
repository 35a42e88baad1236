package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"arena-timer/internal/client"
	"arena-timer/internal/domain"
	"arena-timer/internal/infrastructure"
	"arena-timer/internal/transport"
	"arena-timer/pkg/protocol"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "arena-timer.json"

	// DefaultServerPort is the port the timer server listens on.
	DefaultServerPort = 8765

	// DefaultPath is the Socket.IO endpoint path.
	DefaultPath = "/socket.io/"

	// DefaultListen is the address of the status API.
	DefaultListen = ":8080"

	// DefaultPollInterval is how often the run loop polls the client.
	DefaultPollInterval = 10 * time.Millisecond
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("config file is not valid JSON")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// Config represents the arena-timer.json configuration.
// Durations are Go duration strings such as "10s" or "250ms".
type Config struct {
	// Host is the timer server. Empty means the client waits for a connect command.
	Host string `json:"host,omitempty"`

	// Port is the timer server port.
	Port int `json:"port,omitempty"`

	// Path is the WebSocket upgrade path.
	Path string `json:"path,omitempty"`

	// SocketIOMode forces the Socket.IO envelope even when Path does not name it.
	SocketIOMode bool `json:"socketIOMode"`

	// AutoReconnect retries lost connections with backoff.
	AutoReconnect *bool `json:"autoReconnect,omitempty"`

	// ReconnectBaseInterval is the first retry delay.
	ReconnectBaseInterval string `json:"reconnectBaseInterval,omitempty"`

	// ReconnectMaxInterval caps the retry delay.
	ReconnectMaxInterval string `json:"reconnectMaxInterval,omitempty"`

	// PingInterval is the client ping cadence in plain WebSocket mode.
	PingInterval string `json:"pingInterval,omitempty"`

	// HandshakeTimeout bounds the wait for the upgrade status line.
	HandshakeTimeout string `json:"handshakeTimeout,omitempty"`

	// HeaderTimeout bounds the wait for each upgrade response header.
	HeaderTimeout string `json:"headerTimeout,omitempty"`

	// ReadTimeout bounds the wait for the rest of a frame once its first byte arrived.
	ReadTimeout string `json:"readTimeout,omitempty"`

	// DialTimeout bounds the TCP connect.
	DialTimeout string `json:"dialTimeout,omitempty"`

	// ReceiveBufferSize caps a delivered payload in bytes.
	ReceiveBufferSize int `json:"receiveBufferSize,omitempty"`

	// AppendEIOQuery adds EIOQuery to the path in Socket.IO mode.
	AppendEIOQuery *bool `json:"appendEIOQuery,omitempty"`

	// EIOQuery is the Engine.IO query string.
	EIOQuery string `json:"eioQuery,omitempty"`

	// RequireConnectAck drops events received before the Socket.IO connect ack.
	RequireConnectAck bool `json:"requireConnectAck"`

	// VerifyAccept checks Sec-WebSocket-Accept against the request key.
	VerifyAccept bool `json:"verifyAccept"`

	// Listen is the status API address. Empty disables it.
	Listen string `json:"listen,omitempty"`

	// PollInterval is the run loop cadence.
	PollInterval string `json:"pollInterval,omitempty"`

	// LogVerbosity is the stdr verbosity level.
	LogVerbosity int `json:"logVerbosity,omitempty"`

	configPath string
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Port:                  DefaultServerPort,
		Path:                  DefaultPath,
		AutoReconnect:         boolPtr(true),
		ReconnectBaseInterval: domain.DefaultBaseInterval.String(),
		ReconnectMaxInterval:  domain.DefaultCapInterval.String(),
		PingInterval:          infrastructure.DefaultPingInterval.String(),
		HandshakeTimeout:      infrastructure.DefaultResponseTimeout.String(),
		HeaderTimeout:         infrastructure.DefaultHeaderTimeout.String(),
		ReadTimeout:           infrastructure.DefaultReadTimeout.String(),
		DialTimeout:           transport.DefaultDialTimeout.String(),
		ReceiveBufferSize:     domain.DefaultReceiveBufferSize,
		AppendEIOQuery:        boolPtr(true),
		EIOQuery:              protocol.DefaultEIOQuery,
		Listen:                DefaultListen,
		PollInterval:          DefaultPollInterval.String(),
	}
}

// LoadFile reads configuration from path. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// FilePath returns the path where the config was loaded from.
func (c *Config) FilePath() string {
	return c.configPath
}

// applyDefaults fills in fields an explicit empty value cleared.
func (c *Config) applyDefaults() {
	d := New()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.AutoReconnect == nil {
		c.AutoReconnect = d.AutoReconnect
	}
	if c.ReconnectBaseInterval == "" {
		c.ReconnectBaseInterval = d.ReconnectBaseInterval
	}
	if c.ReconnectMaxInterval == "" {
		c.ReconnectMaxInterval = d.ReconnectMaxInterval
	}
	if c.PingInterval == "" {
		c.PingInterval = d.PingInterval
	}
	if c.HandshakeTimeout == "" {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.HeaderTimeout == "" {
		c.HeaderTimeout = d.HeaderTimeout
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.DialTimeout == "" {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = d.ReceiveBufferSize
	}
	if c.AppendEIOQuery == nil {
		c.AppendEIOQuery = d.AppendEIOQuery
	}
	if c.EIOQuery == "" {
		c.EIOQuery = d.EIOQuery
	}
	if c.PollInterval == "" {
		c.PollInterval = d.PollInterval
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrConfigInvalid)
	}
	if c.ReceiveBufferSize < 1 {
		return fmt.Errorf("%w: receiveBufferSize must be positive", ErrConfigInvalid)
	}
	if c.LogVerbosity < 0 {
		return fmt.Errorf("%w: logVerbosity must not be negative", ErrConfigInvalid)
	}

	durations := []struct {
		name  string
		value string
	}{
		{"reconnectBaseInterval", c.ReconnectBaseInterval},
		{"reconnectMaxInterval", c.ReconnectMaxInterval},
		{"pingInterval", c.PingInterval},
		{"handshakeTimeout", c.HandshakeTimeout},
		{"headerTimeout", c.HeaderTimeout},
		{"readTimeout", c.ReadTimeout},
		{"dialTimeout", c.DialTimeout},
		{"pollInterval", c.PollInterval},
	}
	for _, d := range durations {
		if _, err := parsePositive(d.name, d.value); err != nil {
			return err
		}
	}

	base, _ := time.ParseDuration(c.ReconnectBaseInterval)
	maxInterval, _ := time.ParseDuration(c.ReconnectMaxInterval)
	if base > maxInterval {
		return fmt.Errorf("%w: reconnectBaseInterval %s exceeds reconnectMaxInterval %s",
			ErrConfigInvalid, base, maxInterval)
	}
	return nil
}

// ClientOptions converts the configuration into client options.
// The caller supplies the logger, metrics and tracer.
func (c *Config) ClientOptions() (client.Options, error) {
	if err := c.Validate(); err != nil {
		return client.Options{}, err
	}

	opts := client.DefaultOptions()
	opts.SocketIO = c.SocketIOMode
	opts.AutoReconnect = boolValue(c.AutoReconnect, true)
	opts.AppendEIOQuery = boolValue(c.AppendEIOQuery, true)
	opts.EIOQuery = c.EIOQuery
	opts.RequireConnectAck = c.RequireConnectAck
	opts.VerifyAccept = c.VerifyAccept
	opts.BufferSize = c.ReceiveBufferSize
	opts.BaseInterval = mustDuration(c.ReconnectBaseInterval)
	opts.CapInterval = mustDuration(c.ReconnectMaxInterval)
	opts.PingInterval = mustDuration(c.PingInterval)
	opts.ResponseTimeout = mustDuration(c.HandshakeTimeout)
	opts.HeaderTimeout = mustDuration(c.HeaderTimeout)
	opts.ReadTimeout = mustDuration(c.ReadTimeout)
	return opts, nil
}

// DialTimeoutDuration returns DialTimeout, or the default when it does not parse.
func (c *Config) DialTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.DialTimeout); err == nil && d > 0 {
		return d
	}
	return transport.DefaultDialTimeout
}

// PollIntervalDuration returns PollInterval, or the default when it does not parse.
func (c *Config) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return DefaultPollInterval
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrConfigInvalid, name)
	}
	return d, nil
}

// mustDuration is only called after Validate.
func mustDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

func boolPtr(b bool) *bool {
	return &b
}

func boolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
