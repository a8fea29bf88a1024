package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Engine   Engine
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Engine holds tuning knobs for the assessment session engine.
type Engine struct {
	// SubmitGrace is how long after a test's end time an in-flight
	// submission is still accepted.
	SubmitGrace time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("ENGINE_SUBMIT_GRACE_SECONDS", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Engine.SubmitGrace = time.Duration(viper.GetInt("ENGINE_SUBMIT_GRACE_SECONDS")) * time.Second

	log.Info().Str("port", config.Server.Port).Dur("submitGrace", config.Engine.SubmitGrace).Msg("Config loaded")
	return &config, nil
}
