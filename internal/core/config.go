package core

import (
	"time"
)

type Config struct {
	Telegram TelegramConfig
	Store    StoreConfig
	Server   ServerConfig
	Log      LogConfig
	App      AppConfig
}

type TelegramConfig struct {
	BotToken string
}

type StoreConfig struct {
	// Backend selects the store implementation: memory, sqlite or firebase.
	Backend      string
	SQLitePath   string
	FirebaseURL  string
	FirebaseAuth string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language          string
	SeenCapacity      int
	SeenFalsePositive float64
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "./modguard.db",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:          "en",
			SeenCapacity:      10000,
			SeenFalsePositive: 0.001,
		},
	}
}
