package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/nidhogg/polly/internal/radio"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	World      WorldConfig      `json:"world"`
	Database   DatabaseConfig   `json:"database"`
	Gateway    GatewayConfig    `json:"gateway"`
	Speech     SpeechConfig     `json:"speech"`
	Durable    DurableConfig    `json:"durable"`
	Moderation ModerationConfig `json:"moderation"`
	Channels   []radio.Channel  `json:"channels"`
	Parrots    []ParrotConfig   `json:"parrots"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// WorldConfig drives the world clock that ticks the parrot engine.
type WorldConfig struct {
	TickInterval Duration `json:"tick_interval"`
	Speed        float64  `json:"speed"`
	Seed         uint64   `json:"seed"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
	// Routes maps speech channels onto platform channels. The empty
	// speech channel is local speech.
	Routes []RouteConfig `json:"routes"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	// Webhooks maps discord channel ids to webhook urls so parrots post
	// under their own name.
	Webhooks map[string]string `json:"webhooks"`
}

type RouteConfig struct {
	Channel   string `json:"channel"`
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
	// Migrations overrides the embedded schema with a directory.
	Migrations string `json:"migrations"`
}

type RedisConfig struct {
	URL          string `json:"url"`
	StreamPrefix string `json:"stream_prefix"`
}

// Speech transports.
const (
	TransportBus     = "bus"
	TransportGateway = "gateway"
)

type SpeechConfig struct {
	// Transport selects where emissions go: the game server event bus or
	// the chat gateway.
	Transport   string   `json:"transport"`
	RadioPrefix string   `json:"radio_prefix"`
	EmitTimeout Duration `json:"emit_timeout"`
}

type DurableConfig struct {
	Enabled      bool     `json:"enabled"`
	QueryTimeout Duration `json:"query_timeout"`
}

type ModerationConfig struct {
	Moderators []string `json:"moderators"`
	// OldAfter is how far back the view reaches when old phrases are
	// hidden.
	OldAfter  Duration `json:"old_after"`
	PageLimit int      `json:"page_limit"`
}

// Duration is a time.Duration read from a string like "1m30s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load without the file.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.World.TickInterval == 0 {
		c.World.TickInterval = Duration(time.Second)
	}
	if c.World.Speed == 0 {
		c.World.Speed = 1
	}
	if c.Database.Redis.StreamPrefix == "" {
		c.Database.Redis.StreamPrefix = "polly:"
	}
	if c.Speech.Transport == "" {
		c.Speech.Transport = TransportBus
	}
	if c.Speech.RadioPrefix == "" {
		c.Speech.RadioPrefix = ";"
	}
	if c.Speech.EmitTimeout == 0 {
		c.Speech.EmitTimeout = Duration(5 * time.Second)
	}
	if c.Durable.QueryTimeout == 0 {
		c.Durable.QueryTimeout = Duration(30 * time.Second)
	}
	if c.Moderation.OldAfter == 0 {
		c.Moderation.OldAfter = Duration(24 * time.Hour)
	}
	if c.Moderation.PageLimit == 0 {
		c.Moderation.PageLimit = 200
	}
	for i := range c.Parrots {
		c.Parrots[i].applyDefaults()
	}
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Speech.Transport {
	case TransportBus, TransportGateway:
	default:
		return fmt.Errorf("speech.transport: unknown transport %q", c.Speech.Transport)
	}
	if c.World.TickInterval <= 0 {
		return fmt.Errorf("world.tick_interval must be positive")
	}

	channels := make(map[string]bool, len(c.Channels))
	keys := make(map[string]string, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.ID == "" || ch.KeyCode == "" {
			return fmt.Errorf("channels: id and key are required")
		}
		if channels[ch.ID] {
			return fmt.Errorf("channels: duplicate channel %q", ch.ID)
		}
		if other, ok := keys[ch.KeyCode]; ok {
			return fmt.Errorf("channels: key %q used by %q and %q", ch.KeyCode, other, ch.ID)
		}
		channels[ch.ID] = true
		keys[ch.KeyCode] = ch.ID
	}

	for _, r := range c.Gateway.Routes {
		if r.Channel != "" && !channels[r.Channel] {
			return fmt.Errorf("gateway.routes: unknown channel %q", r.Channel)
		}
		if r.Platform == "" || r.ChannelID == "" {
			return fmt.Errorf("gateway.routes: platform and channel_id are required")
		}
	}

	ids := make(map[string]bool, len(c.Parrots))
	for i, p := range c.Parrots {
		if p.ID != "" {
			if ids[p.ID] {
				return fmt.Errorf("parrots[%d]: duplicate id %q", i, p.ID)
			}
			ids[p.ID] = true
		}
		if err := p.validate(channels); err != nil {
			return fmt.Errorf("parrots[%d] %s: %w", i, p.Name, err)
		}
	}
	return nil
}
