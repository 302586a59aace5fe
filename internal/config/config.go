package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	GenBaseURL      string `env:"GEN_BASE_URL" envDefault:"http://localhost:9000"`
	GenAPIKey       string `env:"GEN_API_KEY"`
	GenTimeoutSecs  int    `env:"GEN_TIMEOUT_SECONDS" envDefault:"30"`
	GenMaxRetries   int    `env:"GEN_MAX_RETRIES" envDefault:"2"`
	GenRetryDelayMS int    `env:"GEN_RETRY_DELAY_MS" envDefault:"1000"`

	// ScoringStrict rechaza salidas del backend con ids de eje desconocidos o
	// ausentes en vez de tolerarlas con warning.
	ScoringStrict bool `env:"SCORING_STRICT_WEIGHTS" envDefault:"false"`

	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
