// Package interfaces collects the external contracts a waxmpp client is
// wired against: persistence (KeyStore), media transfer (MediaStore,
// Thumbnailer), metrics, and the session's own Config.
package interfaces

import "time"

// Config holds every setting SessionStateMachine needs to dial, authenticate,
// and behave once connected. Mirrors the teacher's ModuleConfig shape,
// specialized to the one protocol this client speaks instead of a registry
// of interchangeable ones.
type Config struct {
	Host string
	Port int

	MSISDN   string
	Password []byte // raw, already base64-decoded registration password

	DeviceType string
	AppVersion string
	UserAgent  string
	MCC        string

	ChallengeFilePath string
	DialTimeout       time.Duration

	ReconnectEnabled  bool
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration

	PingInterval time.Duration
}

// NewConfig creates a Config with sensible defaults; MSISDN and Password are
// required and must be supplied via options or direct assignment before
// Validate passes.
func NewConfig() *Config {
	return &Config{
		Host:              "c.whatsapp.net",
		Port:              443,
		DeviceType:        "S40",
		AppVersion:        "2.12.18",
		UserAgent:         "WhatsApp/2.12.18 S40Version/14.26 Device/Nokia302",
		MCC:               "001",
		ChallengeFilePath: "waxmpp.challenge",
		DialTimeout:       15 * time.Second,
		ReconnectEnabled:  true,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  2 * time.Minute,
		PingInterval:      30 * time.Second,
	}
}

// Option is a functional option for Config, in the teacher's WithX idiom.
type Option func(*Config)

// WithCredentials sets the MSISDN and raw registration password.
func WithCredentials(msisdn string, password []byte) Option {
	return func(c *Config) {
		c.MSISDN = msisdn
		c.Password = password
	}
}

// WithServer overrides the chat server host/port.
func WithServer(host string, port int) Option {
	return func(c *Config) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

// WithChallengeFile overrides where the cached-challenge nonce is persisted.
func WithChallengeFile(path string) Option {
	return func(c *Config) { c.ChallengeFilePath = path }
}

// WithDialTimeout overrides the TCP/TLS dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) { c.DialTimeout = d }
}

// WithReconnect toggles automatic reconnection and its backoff bounds.
func WithReconnect(enabled bool, base, max time.Duration) Option {
	return func(c *Config) {
		c.ReconnectEnabled = enabled
		if base > 0 {
			c.ReconnectBaseWait = base
		}
		if max > 0 {
			c.ReconnectMaxWait = max
		}
	}
}

// WithUserAgent overrides the device/app identification strings sent during
// the handshake.
func WithUserAgent(deviceType, appVersion, userAgent string) Option {
	return func(c *Config) {
		c.DeviceType = deviceType
		c.AppVersion = appVersion
		c.UserAgent = userAgent
	}
}

// Apply runs every option against a fresh default Config.
func Apply(opts ...Option) *Config {
	c := NewConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the configuration is complete enough to dial and
// authenticate.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ValidationError{Field: "host", Message: "host must be set"}
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	if c.MSISDN == "" {
		return &ValidationError{Field: "msisdn", Message: "msisdn must be set"}
	}
	if len(c.Password) == 0 {
		return &ValidationError{Field: "password", Message: "password must be set"}
	}
	if c.DialTimeout <= 0 {
		return &ValidationError{Field: "dialTimeout", Message: "dialTimeout must be positive"}
	}
	return nil
}
