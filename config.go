package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath       string `json:"database_path"`
	CheckInterval      string `json:"check_interval"`
	LookaheadDays      int    `json:"lookahead_days"`
	LegacyLoanAgeDays  int    `json:"legacy_loan_age_days"`
	Timezone           string `json:"timezone"`
	HTTPAddress        string `json:"http_address"`
	JWTSecret          string `json:"jwt_secret"`
	TelegramToken      string `json:"telegram_token"`
	TelegramLinkSecret string `json:"telegram_link_secret"`
	AddReminderColumn  bool   `json:"add_reminder_column"`
}

func defaultConfig() Config {
	return Config{
		DatabasePath:      "./finance.db",
		CheckInterval:     "24h0m0s",
		LookaheadDays:     5,
		LegacyLoanAgeDays: 30,
		Timezone:          "Local",
		HTTPAddress:       ":5000",
		AddReminderColumn: true,
	}
}

// loadConfig reads the JSON config file, writing a default one when it does not
// exist yet. Environment variables (including ones from .env) win over the file.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	filePath := os.Getenv("FINANCE_NOTIFIER_CONFIG_FILE")
	if filePath == "" {
		filePath = "config.json"
	}
	cfg, err := readConfigFile(filePath)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readConfigFile(filePath string) (Config, error) {
	cfg := defaultConfig()
	byteValue, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		defaultConfigFile, err := os.Create(filePath)
		if err != nil {
			log.Printf("could not create default config file %v: %v", filePath, err)
			return cfg, nil
		}
		enc := json.NewEncoder(defaultConfigFile)
		enc.SetIndent("", "  ")
		enc.Encode(cfg)
		defaultConfigFile.Close()
		log.Printf("created default config file %v", filePath)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file %v: %w", filePath, err)
	}
	if err := json.Unmarshal(byteValue, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %v: %w", filePath, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"DB_PATH":              &cfg.DatabasePath,
		"JWT_SECRET":           &cfg.JWTSecret,
		"TELEGRAM_BOT_TOKEN":   &cfg.TelegramToken,
		"TELEGRAM_LINK_SECRET": &cfg.TelegramLinkSecret,
		"TZ_NAME":              &cfg.Timezone,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddress = ":" + port
	}
}

func (c Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is not set")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.LookaheadDays < 0 {
		return fmt.Errorf("invalid lookahead_days: %d", c.LookaheadDays)
	}
	if c.LegacyLoanAgeDays < 1 {
		return fmt.Errorf("invalid legacy_loan_age_days: %d", c.LegacyLoanAgeDays)
	}
	if c.HTTPAddress != "" && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required when http_address is set")
	}
	return nil
}

func (c Config) Interval() (time.Duration, error) {
	dur, err := time.ParseDuration(c.CheckInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid check interval: %w", err)
	}
	if dur < time.Second {
		return 0, fmt.Errorf("invalid check interval: %v is shorter than 1s", dur)
	}
	return dur, nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
