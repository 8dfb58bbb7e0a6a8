package config

import (
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"

	"goldtrio/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig       `yaml:"server"`
	Game    GameConfig         `yaml:"game"`
	Prizes  []models.PrizeTier `yaml:"prizes"`
	Storage StorageConfig      `yaml:"storage"`
	Admin   AdminConfig        `yaml:"admin"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GameConfig holds the rules of a round.
type GameConfig struct {
	RoundSeconds       int      `yaml:"round_seconds"`
	GridSize           int      `yaml:"grid_size"`
	WinningCells       int      `yaml:"winning_cells"`
	MaxDailyAttempts   int      `yaml:"max_daily_attempts"`
	ExemptEmail        string   `yaml:"exempt_email"`
	WinFace            string   `yaml:"win_face"`
	LoseFaces          []string `yaml:"lose_faces"`
	DefaultLoseFace    string   `yaml:"default_lose_face"`
	SessionIdleMinutes int      `yaml:"session_idle_minutes"`
}

// StorageConfig holds the on-disk locations of the quota document and the
// result log.
type StorageConfig struct {
	QuotaFile string `yaml:"quota_file"`
	LogFile   string `yaml:"log_file"`
}

// AdminConfig holds the back-office credentials.
type AdminConfig struct {
	Password string `yaml:"password"`
}

// Load reads the YAML config at path and applies defaults and environment
// overrides. A missing file is not an error; the defaults describe a fully
// playable game.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Game.RoundSeconds == 0 {
		c.Game.RoundSeconds = 20
	}
	if c.Game.GridSize == 0 {
		c.Game.GridSize = 9
	}
	if c.Game.WinningCells == 0 {
		c.Game.WinningCells = 3
	}
	if c.Game.MaxDailyAttempts == 0 {
		c.Game.MaxDailyAttempts = 3
	}
	if c.Game.ExemptEmail == "" {
		c.Game.ExemptEmail = "vip@woowa.com"
	}
	if c.Game.WinFace == "" {
		c.Game.WinFace = "win"
	}
	if len(c.Game.LoseFaces) == 0 && c.Game.DefaultLoseFace == "" {
		c.Game.LoseFaces = []string{"lose1", "lose2", "lose3"}
	}
	if c.Game.SessionIdleMinutes == 0 {
		c.Game.SessionIdleMinutes = 60
	}
	if len(c.Prizes) == 0 {
		c.Prizes = []models.PrizeTier{
			{Prefix: "A", Name: "飲品折10元優惠", Weight: 0.497, ValidityDays: 3},
			{Prefix: "B", Name: "任一飲品+餐點折20元", Weight: 0.497, ValidityDays: 3},
			{Prefix: "C", Name: "WOOWA吊飾乙個(隨機)", Weight: 0.006, ValidityDays: 3},
		}
	}
	if c.Storage.QuotaFile == "" {
		c.Storage.QuotaFile = "user_data.json"
	}
	if c.Storage.LogFile == "" {
		c.Storage.LogFile = "game_logs.csv"
	}
	if c.Admin.Password == "" {
		c.Admin.Password = "admin"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOLDTRIO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GOLDTRIO_QUOTA_FILE"); v != "" {
		c.Storage.QuotaFile = v
	}
	if v := os.Getenv("GOLDTRIO_LOG_FILE"); v != "" {
		c.Storage.LogFile = v
	}
	if v := os.Getenv("GOLDTRIO_ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
}

// RoundDuration returns the configured round length.
func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.Game.RoundSeconds) * time.Second
}

// SessionIdleTTL returns how long an abandoned session is kept before the
// janitor evicts it.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.Game.SessionIdleMinutes) * time.Minute
}
