package config

import (
	"fmt"
	"strings"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/route"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable, e.g. VOICECHAT_API_KEY.
const EnvPrefix = "VOICECHAT"

// Default configuration values
const (
	DefaultDomain = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration
type Config struct {
	// APIKey authenticates against the signalling service
	APIKey string `envconfig:"API_KEY" validate:"required"`

	// Domain is the signalling server domain
	Domain string `envconfig:"DOMAIN" validate:"required"`

	// TLS selects wss:// and https:// links
	TLS bool `envconfig:"TLS"`

	// ICE servers for WebRTC
	STUNServer string `envconfig:"STUN_SERVER" validate:"required,startswith=stun:"`
	TURNServer string `envconfig:"TURN_SERVER" validate:"omitempty,startswith=turn:"`
	TURNUser   string `envconfig:"TURN_USERNAME" validate:"required_with=TURNServer"`
	TURNPass   string `envconfig:"TURN_PASSWORD" validate:"required_with=TURNServer"`
	ForceRelay bool   `envconfig:"FORCE_RELAY"`

	// Application state carried over from a previous run or a lobby
	Room          string `envconfig:"ROOM"`
	UserName      string `envconfig:"USER_NAME"`
	InputDeviceID string `envconfig:"INPUT_DEVICE"`

	// RecordDir stores received audio as <peer>.ogg when set
	RecordDir string `envconfig:"RECORD_DIR"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	EnvFile       string
	APIKey        string
	Domain        string
	STUNServer    string
	TURNServer    string
	TURNUser      string
	TURNPass      string
	ForceRelay    bool
	Room          string
	UserName      string
	InputDeviceID string
	RecordDir     string

	// SkipAuth loads a config without an API key, for commands that never
	// reach the signalling service.
	SkipAuth bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables, optionally seeded from a .env file
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Domain:     DefaultDomain,
		STUNServer: DefaultSTUN,
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	override(&cfg.APIKey, opts.APIKey)
	override(&cfg.Domain, opts.Domain)
	override(&cfg.STUNServer, opts.STUNServer)
	override(&cfg.TURNServer, opts.TURNServer)
	override(&cfg.TURNUser, opts.TURNUser)
	override(&cfg.TURNPass, opts.TURNPass)
	override(&cfg.Room, opts.Room)
	override(&cfg.UserName, opts.UserName)
	override(&cfg.InputDeviceID, opts.InputDeviceID)
	override(&cfg.RecordDir, opts.RecordDir)
	if opts.ForceRelay {
		cfg.ForceRelay = true
	}

	if opts.SkipAuth {
		if err := validate.StructExcept(cfg, "APIKey"); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.ForceRelay && c.TURNServer == "" {
		return fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return nil
}

// loadEnvFile seeds the environment from path, or from ./.env when it exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) scheme(secure, plain string) string {
	if c.TLS {
		return secure
	}
	return plain
}

// WebSocketURL is the signalling endpoint constructed from domain
func (c *Config) WebSocketURL() string {
	return fmt.Sprintf("%s://%s/ws", c.scheme("wss", "ws"), c.Domain)
}

// Origin is the site root links are built on.
func (c *Config) Origin() string {
	return fmt.Sprintf("%s://%s", c.scheme("https", "http"), c.Domain)
}

// RoomLink is the shareable link for room.
func (c *Config) RoomLink(room string) string {
	return route.Link(c.Origin(), room)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
