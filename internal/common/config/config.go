// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Workflow      WorkflowConfig          `mapstructure:"workflow"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// WorkflowConfig tunes the registration workflow core.
type WorkflowConfig struct {
	ApplicationType string `mapstructure:"application_type"`
	GateDwell       int    `mapstructure:"gate_dwell"`    // milliseconds
	GuardTTL        int    `mapstructure:"guard_ttl"`     // milliseconds, redis locker only
	MarkerTTL       int    `mapstructure:"marker_ttl"`    // milliseconds, 0 keeps markers forever
	DistributedLock bool   `mapstructure:"distributed_lock"`

	DraftCache struct {
		Size int `mapstructure:"size"`
		TTL  int `mapstructure:"ttl"` // milliseconds
	} `mapstructure:"draft_cache"`

	Sessions struct {
		Size int `mapstructure:"size"`
		TTL  int `mapstructure:"ttl"` // milliseconds
	} `mapstructure:"sessions"`

	Routes RoutesConfig `mapstructure:"routes"`

	NameRegistration struct {
		MessageName string `mapstructure:"message_name"`
	} `mapstructure:"name_registration"`
}

// RoutesConfig names the screens an actor is sent to after the workflow ends.
type RoutesConfig struct {
	Dashboard      string `mapstructure:"dashboard"`
	AdminList      string `mapstructure:"admin_list"`
	EntitlementOut string `mapstructure:"entitlement_redirect"`
}

// NotificationConfig holds settings for delegation notifications.
type NotificationConfig struct {
	Email struct {
		Enabled       bool   `mapstructure:"enabled"`
		FromEmail     string `mapstructure:"from_email"`
		FulfillmentTo string `mapstructure:"fulfillment_team_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
