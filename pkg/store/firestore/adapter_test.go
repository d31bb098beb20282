package firestore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
)

type mockLogger struct{}

func (m *mockLogger) Debug(string, ...any)                      {}
func (m *mockLogger) Info(string, ...any)                       {}
func (m *mockLogger) Warn(string, ...any)                       {}
func (m *mockLogger) Error(string, ...any)                      {}
func (m *mockLogger) With(...any) logger.Logger                 { return m }
func (m *mockLogger) WithContext(context.Context) logger.Logger { return m }

func closedAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := &Adapter{logger: &mockLogger{}}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return a
}

func TestNewAdapter_RequiresProject(t *testing.T) {
	if _, err := NewAdapter(context.Background(), Config{}, &mockLogger{}); err == nil {
		t.Fatal("expected error for empty project id")
	}
}

func TestHealthCheck_WhenClosed(t *testing.T) {
	a := closedAdapter(t)
	if err := a.HealthCheck(context.Background()); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"ambient credentials", Config{ProjectID: "p"}, 0},
		{"key file and api key", Config{ProjectID: "p", CredentialsFile: "/k.json", APIKey: "key"}, 2},
		{"emulator drops credentials", Config{ProjectID: "p", CredentialsFile: "/k.json", EmulatorHost: "localhost:8080"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clientOptions(tt.cfg); len(got) != tt.want {
				t.Fatalf("expected %d options, got %d", tt.want, len(got))
			}
		})
	}
}

func TestNewAdapter_EmulatorLeavesEnvironment(t *testing.T) {
	t.Setenv(EmulatorHostEnv, "")

	a, err := NewAdapter(context.Background(), Config{ProjectID: "p", EmulatorHost: "localhost:8080"}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	defer a.Close()

	if got := os.Getenv(EmulatorHostEnv); got != "" {
		t.Fatalf("%s = %q, want it untouched", EmulatorHostEnv, got)
	}
}

func TestEmulatorCreds(t *testing.T) {
	md, err := emulatorCreds{}.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata() error = %v", err)
	}
	if md["authorization"] != "Bearer owner" {
		t.Fatalf("unexpected metadata: %v", md)
	}
	if (emulatorCreds{}).RequireTransportSecurity() {
		t.Fatal("emulator traffic is plaintext")
	}
}

func TestDatabaseOrDefault(t *testing.T) {
	if got := databaseOrDefault(""); got != "(default)" {
		t.Fatalf("unexpected default database: %q", got)
	}
	if got := databaseOrDefault("tenant"); got != "tenant" {
		t.Fatalf("explicit database id must be kept, got %q", got)
	}
}
