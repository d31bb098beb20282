package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "DOCGATE")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	return l.finish(v)
}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	// Only an explicitly specified file is an error when unreadable.
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}
	return v, nil
}

func (l *ViperLoader) finish(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	// Service
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Store
	v.BindEnv("store.type", l.prefixedEnv("STORE_TYPE"))
	v.BindEnv("store.counter_field", l.prefixedEnv("STORE_COUNTER_FIELD"))
	v.BindEnv("store.operation_timeout", l.prefixedEnv("STORE_OPERATION_TIMEOUT"))
	v.BindEnv("store.connect_timeout", l.prefixedEnv("STORE_CONNECT_TIMEOUT"))
	v.BindEnv("store.breaker.enabled", l.prefixedEnv("STORE_BREAKER_ENABLED"))
	v.BindEnv("store.breaker.max_failures", l.prefixedEnv("STORE_BREAKER_MAX_FAILURES"))
	v.BindEnv("store.breaker.cooldown", l.prefixedEnv("STORE_BREAKER_COOLDOWN"))

	// Firebase
	v.BindEnv("store.firebase.project_id", l.prefixedEnv("FIREBASE_PROJECT_ID"), "GOOGLE_CLOUD_PROJECT")
	v.BindEnv("store.firebase.api_key", l.prefixedEnv("FIREBASE_API_KEY"))
	v.BindEnv("store.firebase.auth_domain", l.prefixedEnv("FIREBASE_AUTH_DOMAIN"))
	v.BindEnv("store.firebase.storage_bucket", l.prefixedEnv("FIREBASE_STORAGE_BUCKET"))
	v.BindEnv("store.firebase.messaging_sender_id", l.prefixedEnv("FIREBASE_MESSAGING_SENDER_ID"))
	v.BindEnv("store.firebase.app_id", l.prefixedEnv("FIREBASE_APP_ID"))
	v.BindEnv("store.firebase.database_url", l.prefixedEnv("FIREBASE_DATABASE_URL"))
	v.BindEnv("store.firebase.measurement_id", l.prefixedEnv("FIREBASE_MEASUREMENT_ID"))
	v.BindEnv("store.firebase.database_id", l.prefixedEnv("FIREBASE_DATABASE_ID"))
	v.BindEnv("store.firebase.credentials_file", l.prefixedEnv("FIREBASE_CREDENTIALS_FILE"), "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("store.firebase.emulator_host", l.prefixedEnv("FIREBASE_EMULATOR_HOST"), "FIRESTORE_EMULATOR_HOST")

	// MongoDB
	v.BindEnv("store.mongodb.url", l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("store.mongodb.database", l.prefixedEnv("MONGODB_DATABASE"))
	v.BindEnv("store.mongodb.connect_timeout", l.prefixedEnv("MONGODB_CONNECT_TIMEOUT"))

	// DynamoDB
	v.BindEnv("store.dynamodb.region", l.prefixedEnv("DYNAMODB_REGION"), "AWS_REGION")
	v.BindEnv("store.dynamodb.endpoint", l.prefixedEnv("DYNAMODB_ENDPOINT"))
	v.BindEnv("store.dynamodb.access_key_id", l.prefixedEnv("DYNAMODB_ACCESS_KEY_ID"))
	v.BindEnv("store.dynamodb.secret_access_key", l.prefixedEnv("DYNAMODB_SECRET_ACCESS_KEY"))
	v.BindEnv("store.dynamodb.session_token", l.prefixedEnv("DYNAMODB_SESSION_TOKEN"))
	v.BindEnv("store.dynamodb.key_attribute", l.prefixedEnv("DYNAMODB_KEY_ATTRIBUTE"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.service_name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
}

// bindLegacyEnvVars maps legacy env vars to current names when the current vars are absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		currentSuffix string
		legacySuffix  string
	}{
		{"STORE_TYPE", "DB_TYPE"},
		{"STORE_OPERATION_TIMEOUT", "DB_QUERY_TIMEOUT"},
		{"MONGODB_URL", "DB_URL"},
		{"MONGODB_DATABASE", "DB_DATABASE_NAME"},
		{"MONGODB_CONNECT_TIMEOUT", "DB_CONNECT_TIMEOUT"},
		{"DYNAMODB_REGION", "DB_REGION"},
		{"DYNAMODB_ENDPOINT", "DB_ENDPOINT"},
		{"DYNAMODB_ACCESS_KEY_ID", "DB_ACCESS_KEY_ID"},
		{"DYNAMODB_SECRET_ACCESS_KEY", "DB_SECRET_ACCESS_KEY"},
		{"DYNAMODB_SESSION_TOKEN", "DB_SESSION_TOKEN"},
	}

	for _, alias := range aliases {
		currentEnv := l.prefixedEnv(alias.currentSuffix)
		if _, hasCurrent := os.LookupEnv(currentEnv); hasCurrent {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv(alias.legacySuffix)); hasLegacy {
			_ = os.Setenv(currentEnv, legacyValue)
		}
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config.
// Firebase credential fields get no defaults.
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("store.type", cfg.Store.Type)
	v.SetDefault("store.counter_field", cfg.Store.CounterField)
	v.SetDefault("store.operation_timeout", cfg.Store.OperationTimeout)
	v.SetDefault("store.connect_timeout", cfg.Store.ConnectTimeout)
	v.SetDefault("store.breaker.enabled", cfg.Store.Breaker.Enabled)
	v.SetDefault("store.breaker.max_failures", cfg.Store.Breaker.MaxFailures)
	v.SetDefault("store.breaker.cooldown", cfg.Store.Breaker.Cooldown)
	v.SetDefault("store.mongodb.connect_timeout", cfg.Store.MongoDB.ConnectTimeout)
	v.SetDefault("store.dynamodb.key_attribute", cfg.Store.DynamoDB.KeyAttribute)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.service_name", l.defaultServiceName(cfg.Observability.ServiceName))
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Store.Type = strings.ToLower(strings.TrimSpace(cfg.Store.Type))
	validStoreTypes := []string{StoreTypeFirestore, StoreTypeMongoDB, StoreTypeDynamoDB, StoreTypeMemory}
	if !contains(validStoreTypes, cfg.Store.Type) {
		errs = append(errs, fmt.Errorf("invalid store.type: %s (must be one of: %v)", cfg.Store.Type, validStoreTypes))
	}

	switch cfg.Store.Type {
	case StoreTypeMongoDB:
		if cfg.Store.MongoDB.URL == "" {
			errs = append(errs, errors.New("store.mongodb.url is required for MongoDB"))
		}
		if cfg.Store.MongoDB.Database == "" {
			errs = append(errs, errors.New("store.mongodb.database is required for MongoDB"))
		}
	case StoreTypeDynamoDB:
		if cfg.Store.DynamoDB.Region == "" {
			errs = append(errs, errors.New("store.dynamodb.region is required for DynamoDB"))
		}
	}

	if strings.TrimSpace(cfg.Store.CounterField) == "" {
		errs = append(errs, errors.New("store.counter_field cannot be empty"))
	}
	if cfg.Store.OperationTimeout < 0 {
		errs = append(errs, errors.New("store.operation_timeout cannot be negative"))
	}
	if cfg.Store.ConnectTimeout < 0 {
		errs = append(errs, errors.New("store.connect_timeout cannot be negative"))
	}
	if cfg.Store.Breaker.Enabled {
		if cfg.Store.Breaker.MaxFailures < 1 {
			errs = append(errs, fmt.Errorf("store.breaker.max_failures must be at least 1, got %d", cfg.Store.Breaker.MaxFailures))
		}
		if cfg.Store.Breaker.Cooldown <= 0 {
			errs = append(errs, errors.New("store.breaker.cooldown must be positive"))
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(cfg.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLogLevels))
	}
	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validLogFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1, got %v", cfg.Observability.TracingSampleRate))
	}
	if cfg.Observability.TracingEnabled && strings.TrimSpace(cfg.Observability.TracingEndpoint) == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
