package config

import (
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRedacted_MasksKnownSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Firebase.ProjectID = "demo-project"
	cfg.Store.Firebase.APIKey = "AIza-secret"
	cfg.Store.DynamoDB.SecretAccessKey = "aws-secret"

	out := cfg.Redacted(nil)
	if strings.Contains(out, "AIza-secret") || strings.Contains(out, "aws-secret") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "demo-project") {
		t.Fatalf("non-secret values must stay visible:\n%s", out)
	}
	if !strings.Contains(cfg.String(), "AIza-secret") {
		t.Fatal("String must render the unmasked configuration")
	}
}

func TestRedacted_MasksSecretsFileValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Firebase.CredentialsFile = "/etc/keys/sa.json"
	secrets := &Config{}
	secrets.Store.Firebase.CredentialsFile = "/etc/keys/sa.json"

	out := cfg.Redacted(secrets)
	if strings.Contains(out, "/etc/keys/sa.json") {
		t.Fatalf("secrets-file value leaked:\n%s", out)
	}
}

func TestRedacted_IsYAML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.MongoDB.URL = "mongodb://user:pw@db:27017"

	var tree map[string]map[string]any
	if err := yaml.Unmarshal([]byte(cfg.Redacted(nil)), &tree); err != nil {
		t.Fatalf("redacted config is not YAML: %v", err)
	}
	if tree["store"]["type"] != StoreTypeFirestore {
		t.Errorf("expected store.type firestore, got %v", tree["store"]["type"])
	}
	if tree["store"]["operation_timeout"] != "5s" {
		t.Errorf("expected durations rendered as text, got %v", tree["store"]["operation_timeout"])
	}
	mongo, _ := tree["store"]["mongodb"].(map[string]any)
	if mongo["url"] != "***" {
		t.Errorf("expected mongodb url masked, got %v", mongo["url"])
	}
	if mongo["database"] != "" {
		t.Errorf("expected empty database to stay empty, got %v", mongo["database"])
	}
}

func TestLoadWithSecrets(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
store:
  type: firestore
  firebase:
    project_id: demo-project
`)
	writeFile(t, dir, "secrets.yaml", `
store:
  firebase:
    api_key: AIza-from-secrets
`)

	cfg, secrets, err := NewViperLoader(cfgPath, "DOCGATE").LoadWithSecrets()
	if err != nil {
		t.Fatalf("LoadWithSecrets() error = %v", err)
	}
	if cfg.Store.Firebase.ProjectID != "demo-project" || cfg.Store.Firebase.APIKey != "AIza-from-secrets" {
		t.Fatalf("secrets not merged: %+v", cfg.Store.Firebase)
	}
	if secrets == nil || secrets.Store.Firebase.APIKey != "AIza-from-secrets" {
		t.Fatalf("expected secrets config, got %+v", secrets)
	}
}

func TestLoadWithSecrets_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"missing file", filepath.Join(dir, "missing.yaml"), true},
		{"directory", dir, true},
		{"blank", "  ", true},
		{"regular file", writeFile(t, dir, "vault.yaml", "store:\n  firebase:\n    api_key: from-vault\n"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DOCGATE_SECRETS_FILE", tt.value)
			cfg, _, err := NewViperLoader("", "DOCGATE").LoadWithSecrets()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadWithSecrets() error = %v", err)
			}
			if cfg.Store.Firebase.APIKey != "from-vault" {
				t.Errorf("expected api key from explicit file, got %q", cfg.Store.Firebase.APIKey)
			}
		})
	}
}

func TestLoadWithSecrets_NoSecretsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, secrets, err := NewViperLoader("", "DOCGATE_NOSECRETS").LoadWithSecrets()
	if err != nil {
		t.Fatalf("LoadWithSecrets() error = %v", err)
	}
	if secrets != nil {
		t.Fatalf("expected no secrets, got %+v", secrets)
	}
}
