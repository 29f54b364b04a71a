// Package config loads server configuration from an optional YAML file with
// environment overrides. Env always wins so container deploys can stay
// file-free.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"tripweaver/internal/sched"
)

type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	Backend struct {
		BaseURL string `yaml:"baseUrl"`
		Secret  string `yaml:"secret"`
	} `yaml:"backend"`

	Timeline struct {
		Window      sched.Window `yaml:"window"`
		PxPerMinute float64      `yaml:"pxPerMinute"`
	} `yaml:"timeline"`

	RateLimit struct {
		PerSecond float64 `yaml:"perSecond"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Default returns the configuration used when no file and no env are present.
func Default() Config {
	var c Config
	c.Addr = ":8080"
	c.Timeline.Window = sched.DefaultWindow
	c.Timeline.PxPerMinute = 1.0
	c.RateLimit.PerSecond = 20
	c.RateLimit.Burst = 40
	return c
}

// Load reads path (when non-empty) over defaults, then applies env overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
	}
	c.applyEnv()
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_SECRET"); v != "" {
		c.Backend.Secret = v
	}
	if v := os.Getenv("TIMELINE_WINDOW_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Timeline.Window.Start = n
		}
	}
	if v := os.Getenv("TIMELINE_WINDOW_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Timeline.Window.End = n
		}
	}
	if v := os.Getenv("TIMELINE_PX_PER_MINUTE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Timeline.PxPerMinute = f
		}
	}
}

func (c *Config) validate() error {
	w := c.Timeline.Window
	if w.Start < 0 || w.End > 24*60 || w.Start >= w.End {
		return fmt.Errorf("config: bad timeline window [%d,%d)", w.Start, w.End)
	}
	if c.Timeline.PxPerMinute <= 0 {
		return fmt.Errorf("config: pxPerMinute must be positive")
	}
	return nil
}
