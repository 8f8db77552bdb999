/*
Copyright 2025 Courtside Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5401"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"COURTSIDE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"COURTSIDE_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"COURTSIDE_SERVER_PORT"`
	BaseURL   string `json:"base_url" envconfig:"COURTSIDE_SERVER_BASE_URL"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"COURTSIDE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"COURTSIDE_REDIS_DNS"`
}

// WorkerConfig carries the queue policy knobs. The defaults match the
// values the rest of the platform enqueues against; changing MaxAttempts
// or RetryDelay changes the dead-letter contract for every producer, so
// they are configurable but rarely overridden.
type WorkerConfig struct {
	BatchSize             int           `json:"batch_size" envconfig:"COURTSIDE_WORKER_BATCH_SIZE"`
	MaxAttempts           int           `json:"max_attempts" envconfig:"COURTSIDE_WORKER_MAX_ATTEMPTS"`
	RetryDelay            time.Duration `json:"retry_delay" envconfig:"COURTSIDE_WORKER_RETRY_DELAY"`
	LeaseTimeout          time.Duration `json:"lease_timeout" envconfig:"COURTSIDE_WORKER_LEASE_TIMEOUT"`
	NotificationBatchSize int           `json:"notification_batch_size" envconfig:"COURTSIDE_WORKER_NOTIFICATION_BATCH_SIZE"`
	NotificationMaxRetry  int           `json:"notification_max_retry" envconfig:"COURTSIDE_WORKER_NOTIFICATION_MAX_RETRY"`
	Interval              time.Duration `json:"interval" envconfig:"COURTSIDE_WORKER_INTERVAL"`
}

type ProviderConfig struct {
	BaseURL   string `json:"base_url" envconfig:"COURTSIDE_PROVIDER_BASE_URL"`
	SecretKey string `json:"secret_key" envconfig:"COURTSIDE_PROVIDER_SECRET_KEY"`
	Timeout   int    `json:"timeout" envconfig:"COURTSIDE_PROVIDER_TIMEOUT"`
}

type MailerConfig struct {
	Url       string `json:"url" envconfig:"COURTSIDE_MAILER_URL"`
	ApiKey    string `json:"api_key" envconfig:"COURTSIDE_MAILER_API_KEY"`
	FromEmail string `json:"from_email" envconfig:"COURTSIDE_MAILER_FROM_EMAIL"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"COURTSIDE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"COURTSIDE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"COURTSIDE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"COURTSIDE_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Worker       WorkerConfig     `json:"worker"`
	Provider     ProviderConfig   `json:"provider"`
	Mailer       MailerConfig     `json:"mailer"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("courtside", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called courtside.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Courtside Ops Engine"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Server.BaseURL == "" {
		cnf.Server.BaseURL = "https://courtside.app"
	}

	cnf.applyWorkerDefaults()

	if cnf.Provider.Timeout <= 0 {
		cnf.Provider.Timeout = 30
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) applyWorkerDefaults() {
	if cnf.Worker.BatchSize <= 0 {
		cnf.Worker.BatchSize = 5
	}
	if cnf.Worker.MaxAttempts <= 0 {
		cnf.Worker.MaxAttempts = 5
	}
	if cnf.Worker.RetryDelay <= 0 {
		cnf.Worker.RetryDelay = 5 * time.Minute
	}
	if cnf.Worker.LeaseTimeout <= 0 {
		cnf.Worker.LeaseTimeout = 10 * time.Minute
	}
	if cnf.Worker.NotificationBatchSize <= 0 {
		cnf.Worker.NotificationBatchSize = 20
	}
	if cnf.Worker.NotificationMaxRetry <= 0 {
		cnf.Worker.NotificationMaxRetry = 5
	}
	if cnf.Worker.Interval <= 0 {
		cnf.Worker.Interval = time.Minute
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyWorkerDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
