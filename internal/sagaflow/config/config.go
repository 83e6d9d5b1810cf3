// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package config loads the sagaflow service configuration from sagaflow.yaml
// via viper, with environment overrides prefixed SAGAFLOW_.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		// Port serves the admin API and the metrics endpoint.
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		DBName   string `mapstructure:"dbname"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Nats struct {
		URLs []string `mapstructure:"urls"`
	} `mapstructure:"nats"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Reconciler struct {
		Interval   time.Duration `mapstructure:"interval"`
		StaleAfter time.Duration `mapstructure:"stale_after"`
	} `mapstructure:"reconciler"`

	Purger struct {
		Interval      time.Duration `mapstructure:"interval"`
		RetentionDays int           `mapstructure:"retention_days"`
	} `mapstructure:"purger"`
}

// DSN assembles the PostgreSQL connection string.
func (c *Config) DSN() string {
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.Username, c.Database.Password,
		c.Database.DBName, sslmode)
}

// Validate checks the fields no default can cover.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database host and dbname are required")
	}
	return nil
}

var (
	cfg  *Config
	once sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.username", "sagaflow")
	v.SetDefault("nats.urls", []string{"nats://localhost:4222"})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("reconciler.interval", 2*time.Minute)
	v.SetDefault("reconciler.stale_after", 5*time.Minute)
	v.SetDefault("purger.interval", 24*time.Hour)
	v.SetDefault("purger.retention_days", 7)
}

// Load reads the configuration from the given path (or the working directory
// when empty).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("sagaflow")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sagaflow")
	v.SetEnvPrefix("SAGAFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Defaults plus environment are enough to run.
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// GetConfig loads the configuration once and panics on failure, matching the
// process-start-only call sites.
func GetConfig() *Config {
	once.Do(func() {
		var err error
		cfg, err = Load("")
		if err != nil {
			panic(fmt.Errorf("FATAL ERROR CONFIG FILE: %w", err))
		}
	})
	return cfg
}
