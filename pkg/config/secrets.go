package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadWithSecrets loads configuration and merges a secrets file over it, so
// Firebase keys and database URLs can live apart from config.yaml.
// Precedence: ENV > secrets file > config file > defaults.
//
// The secrets file is <PREFIX>_SECRETS_FILE when set, otherwise secrets.<ext>
// next to the config file, otherwise secrets.yaml (or .yml/.json) in the
// working directory. The second return value holds only what the secrets
// file set, for Config.Redacted; it is nil without a secrets file.
func (l *ViperLoader) LoadWithSecrets() (*Config, *Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, nil, err
	}

	path, err := l.secretsFile()
	if err != nil {
		return nil, nil, err
	}

	var secrets *Config
	if path != "" {
		sv := viper.New()
		sv.SetConfigFile(path)
		if err := sv.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read secrets file %s: %w", path, err)
		}
		secrets = &Config{}
		if err := sv.Unmarshal(secrets); err != nil {
			return nil, nil, fmt.Errorf("decode secrets file %s: %w", path, err)
		}
		if err := v.MergeConfigMap(sv.AllSettings()); err != nil {
			return nil, nil, fmt.Errorf("merge secrets file %s: %w", path, err)
		}
	}

	cfg, err := l.finish(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, secrets, nil
}

// secretsFile resolves the secrets file path. An explicit env var that is
// empty or does not name a regular file is an error; discovered candidates
// that are missing are skipped.
func (l *ViperLoader) secretsFile() (string, error) {
	envName := l.prefixedEnv("SECRETS_FILE")
	if raw, ok := os.LookupEnv(envName); ok {
		path := strings.TrimSpace(raw)
		if path == "" {
			return "", fmt.Errorf("%s is set but empty", envName)
		}
		if err := requireRegularFile(path); err != nil {
			return "", fmt.Errorf("%s: %w", envName, err)
		}
		return path, nil
	}

	var candidates []string
	if l.configFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile)))
	}
	candidates = append(candidates, "secrets.yaml", "secrets.yml", "secrets.json")

	for _, path := range candidates {
		if requireRegularFile(path) == nil {
			return path, nil
		}
	}
	return "", nil
}

func requireRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New(path + " is a directory")
	}
	return nil
}
