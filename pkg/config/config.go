package config

import "time"

// Store type constants
const (
	// StoreTypeFirestore represents Google Cloud Firestore
	StoreTypeFirestore = "firestore"
	// StoreTypeMongoDB represents MongoDB
	StoreTypeMongoDB = "mongodb"
	// StoreTypeDynamoDB represents AWS DynamoDB
	StoreTypeDynamoDB = "dynamodb"
	// StoreTypeMemory represents the in-process store
	StoreTypeMemory = "memory"
)

// DefaultEnvPrefix is the environment variable prefix used by the CLI.
const DefaultEnvPrefix = "DOCGATE"

// Config is the root configuration structure
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Store         StoreConfig         `mapstructure:"store"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig identifies the process using the store
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	Type     string         `mapstructure:"type"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	// CounterField is the field ReadCount reads from the counter document.
	CounterField     string        `mapstructure:"counter_field"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	// ConnectTimeout bounds Initialize; zero leaves it to the caller's context.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures int           `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// FirebaseConfig carries the Firebase project settings. The web-app keys
// (auth_domain, storage_bucket, ...) are accepted for parity with Firebase
// console exports; the server SDK only needs project_id and credentials.
type FirebaseConfig struct {
	ProjectID         string `mapstructure:"project_id"`
	APIKey            string `mapstructure:"api_key"`
	AuthDomain        string `mapstructure:"auth_domain"`
	StorageBucket     string `mapstructure:"storage_bucket"`
	MessagingSenderID string `mapstructure:"messaging_sender_id"`
	AppID             string `mapstructure:"app_id"`
	DatabaseURL       string `mapstructure:"database_url"`
	MeasurementID     string `mapstructure:"measurement_id"`
	DatabaseID        string `mapstructure:"database_id"`
	CredentialsFile   string `mapstructure:"credentials_file"`
	EmulatorHost      string `mapstructure:"emulator_host"`
}

// MongoDBConfig configures the MongoDB backend
type MongoDBConfig struct {
	URL            string        `mapstructure:"url"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DynamoDBConfig configures the DynamoDB backend
type DynamoDBConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	KeyAttribute    string `mapstructure:"key_attribute"`
}

// ObservabilityConfig configures logging and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	ServiceName       string  `mapstructure:"service_name"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docgate",
			Environment: "production",
		},
		Store: StoreConfig{
			Type:             StoreTypeFirestore,
			CounterField:     "count",
			OperationTimeout: 5 * time.Second,
			ConnectTimeout:   15 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Cooldown:    30 * time.Second,
			},
			MongoDB: MongoDBConfig{
				ConnectTimeout: 10 * time.Second,
			},
			DynamoDB: DynamoDBConfig{
				KeyAttribute: "pk",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			ServiceName:       "docgate",
			TracingSampleRate: 0.1,
			TracingEndpoint:   "localhost:4317",
		},
	}
}
