// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/bqrunner/bqjob"
)

// Config aggregates configuration for the application.
type Config struct {
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	API      APIConfig      `mapstructure:"api"`
}

// BigQueryConfig selects the project and endpoint and tunes job execution.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	// BaseURL overrides the REST endpoint, e.g. for an emulator.
	BaseURL string `mapstructure:"base_url"`
	// Impersonate is a service account email to act as.
	Impersonate string `mapstructure:"impersonate"`
	// NoAuth sends requests without credentials.
	NoAuth bool `mapstructure:"no_auth"`

	MaxRetries          int           `mapstructure:"max_retries"`
	PollInitialInterval time.Duration `mapstructure:"poll_initial_interval"`
	PollMaxInterval     time.Duration `mapstructure:"poll_max_interval"`
	PollMaxDuration     time.Duration `mapstructure:"poll_max_duration"`
}

// JobConfig converts the settings for the job executor.
func (c BigQueryConfig) JobConfig() bqjob.Config {
	return bqjob.Config{
		Project:             c.Project,
		MaxRetries:          c.MaxRetries,
		PollInitialInterval: c.PollInitialInterval,
		MaxPollInterval:     c.PollMaxInterval,
		MaxPollDuration:     c.PollMaxDuration,
	}
}

// APIConfig configures the query HTTP API.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
	// CacheTTL is how long query results are reused. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// Concurrency bounds the targets of one request executed at once.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	job := bqjob.DefaultConfig()
	return &Config{
		BigQuery: BigQueryConfig{
			MaxRetries:          job.MaxRetries,
			PollInitialInterval: job.PollInitialInterval,
			PollMaxInterval:     job.MaxPollInterval,
			PollMaxDuration:     job.MaxPollDuration,
		},
		API: APIConfig{
			Listen:      ":8080",
			CacheTTL:    30 * time.Second,
			Concurrency: 8,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "BQRUNNER" and the dot character
// in keys is replaced by an underscore. For example, "bigquery.project"
// becomes "BQRUNNER_BIGQUERY_PROJECT".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BQRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
