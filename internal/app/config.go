package app

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment with the BALLOTWATCH prefix. A
// .env file in the working directory is loaded first if present.
type Config struct {
	BackendURL string `envconfig:"BACKEND_URL" default:"http://localhost:8880"`
	ElectionID string `envconfig:"ELECTION_ID" default:"e-1"`
	DBPath     string `envconfig:"DB_PATH" default:"ballotwatch.db"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	VoterID    string `envconfig:"VOTER_ID"`
	Admin      bool   `envconfig:"ADMIN"`
}

// LoadConfig reads configuration from .env and the environment
func LoadConfig() (Config, error) {
	// Missing .env is fine; explicit environment always wins
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ballotwatch", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
