package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath = "config.toml"
	DefaultPGHost     = "127.0.0.1"
	DefaultPGPort     = 5432
	DefaultPGUser     = "postgres"
	DefaultPGDatabase = "sourcehound"
	DefaultPGSSLMode  = "disable"
)

type Config struct {
	Log         LogConfig         `toml:"log"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Postgres    PostgresConfig    `toml:"postgres"`
	FuzzySearch FuzzySearchConfig `toml:"fuzzysearch"`
	Twitter     TwitterConfig     `toml:"twitter"`
	FurAffinity FurAffinityConfig `toml:"furaffinity"`
	Weasyl      WeasylConfig      `toml:"weasyl"`
	Inkbunny    InkbunnyConfig    `toml:"inkbunny"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type FuzzySearchConfig struct {
	APIKey string `toml:"api_key"`
}

type TwitterConfig struct {
	BearerToken string `toml:"bearer_token"`
}

type FurAffinityConfig struct {
	CookieA   string `toml:"cookie_a"`
	CookieB   string `toml:"cookie_b"`
	SolverURL string `toml:"solver_url"`
}

type WeasylConfig struct {
	APIKey string `toml:"api_key"`
}

type InkbunnyConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
