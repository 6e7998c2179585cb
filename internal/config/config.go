package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/howl/internal/provider/gemini"
	"github.com/davidbz/howl/internal/provider/openai"
)

// Config represents the orchestrator configuration.
type Config struct {
	Server       ServerConfig
	CORS         CORSConfig
	OpenAI       openai.Config
	Gemini       gemini.Config
	Routing      RoutingConfig
	Structure    StructureConfig
	Engine       EngineConfig
	Orchestrator OrchestratorConfig
	Redis        RedisConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RoutingConfig contains the size-tier thresholds in characters.
type RoutingConfig struct {
	SmallMaxChars  int `env:"ROUTING_SMALL_MAX_CHARS"  envDefault:"20000"`
	MediumMaxChars int `env:"ROUTING_MEDIUM_MAX_CHARS" envDefault:"200000"`
}

// StructureConfig contains the structure scorer cutoffs.
type StructureConfig struct {
	WeakHeadingsScore int `env:"STRUCTURE_WEAK_HEADINGS_SCORE" envDefault:"55"`
	CloseMargin       int `env:"STRUCTURE_CLOSE_MARGIN"        envDefault:"10"`
}

// EngineConfig contains execution timing settings in seconds/milliseconds.
type EngineConfig struct {
	AttemptTimeout int `env:"ENGINE_ATTEMPT_TIMEOUT"  envDefault:"60"`
	RetryBackoffMs int `env:"ENGINE_RETRY_BACKOFF_MS" envDefault:"750"`
}

// OrchestratorConfig contains pipeline-level settings.
type OrchestratorConfig struct {
	CacheTTLSeconds   int `env:"CACHE_TTL_SECONDS"  envDefault:"86400"`
	MaxParallelChunks int `env:"CHUNK_MAX_PARALLEL" envDefault:"4"`
}

// RedisConfig contains result cache backend settings. An empty address
// disables the result cache.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	OpenAI *openai.Config
	Gemini *gemini.Config
	*RoutingConfig
	*StructureConfig
	*EngineConfig
	*OrchestratorConfig
	*RedisConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.OpenAI,
		&cfg.Gemini,
		&cfg.Routing,
		&cfg.Structure,
		&cfg.Engine,
		&cfg.Orchestrator,
		&cfg.Redis,
	}
}
