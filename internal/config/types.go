// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	ConfigPath string `yaml:"-"`

	LogLevel  string          `yaml:"logLevel" validate:"oneof=trace debug info warn error"`
	API       APIConfig       `yaml:"api"`
	Gate      GateConfig      `yaml:"gate"`
	Grants    GrantsConfig    `yaml:"grants"`
	Identity  IdentityConfig  `yaml:"identity"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Engine    EngineConfig    `yaml:"engine"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type APIConfig struct {
	ListenAddr   string          `yaml:"listenAddr" validate:"required"`
	PublicOrigin string          `yaml:"publicOrigin" validate:"required,url"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	// MaxConnections caps concurrent client connections; 0 disables the cap.
	MaxConnections int `yaml:"maxConnections" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests" validate:"gte=1"`
	Window   time.Duration `yaml:"window" validate:"gt=0"`
}

// GateConfig controls the watch gate. GrantTTL is a fixed window and only
// configurable for tests and operations.
type GateConfig struct {
	LobbyPath        string        `yaml:"lobbyPath" validate:"required,startswith=/"`
	LoginPath        string        `yaml:"loginPath" validate:"required,startswith=/"`
	ProfileSetupPath string        `yaml:"profileSetupPath" validate:"required,startswith=/"`
	GrantTTL         time.Duration `yaml:"grantTTL" validate:"gt=0"`
}

type GrantsConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=memory redis sqlite badger bolt"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type IdentityConfig struct {
	UserinfoURL string        `yaml:"userinfoURL" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// CatalogConfig selects the stream catalog. An empty Path uses the in-memory catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig locates the playback engine library. An empty LibraryURL uses
// the built-in module.
type EngineConfig struct {
	LibraryURL       string        `yaml:"libraryURL" validate:"omitempty,url"`
	Version          string        `yaml:"version" validate:"required"`
	BreakerThreshold int           `yaml:"breakerThreshold" validate:"gte=1"`
	BreakerReset     time.Duration `yaml:"breakerReset" validate:"gt=0"`
}

type PlaybackConfig struct {
	RetryDebounce time.Duration `yaml:"retryDebounce" validate:"gte=0"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=grpc http"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate" validate:"gte=0,lte=1"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr:     ":8088",
			PublicOrigin:   "http://localhost:8088",
			MaxConnections: 1024,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 120,
				Window:   time.Minute,
			},
		},
		Gate: GateConfig{
			LobbyPath:        "/dashboard",
			LoginPath:        "/login",
			ProfileSetupPath: "/profile/setup",
			GrantTTL:         time.Hour,
		},
		Grants: GrantsConfig{
			Backend: "memory",
		},
		Identity: IdentityConfig{
			Timeout: 3 * time.Second,
		},
		Engine: EngineConfig{
			Version:          "1",
			BreakerThreshold: 3,
			BreakerReset:     30 * time.Second,
		},
		Playback: PlaybackConfig{
			RetryDebounce: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
