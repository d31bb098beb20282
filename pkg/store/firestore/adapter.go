package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// EmulatorHostEnv is the conventional variable holding the emulator address.
const EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

const defaultOperationTimeout = 5 * time.Second

// Config holds Firestore adapter configuration.
type Config struct {
	ProjectID        string
	DatabaseID       string
	CredentialsFile  string
	APIKey           string
	EmulatorHost     string
	OperationTimeout time.Duration
}

// Adapter owns the SDK client for one project database.
type Adapter struct {
	client  *firestore.Client
	logger  logger.Logger
	timeout time.Duration
	guard   store.Guard
}

// NewAdapter opens a client for the configured project and database. With
// EmulatorHost set it dials the emulator over plaintext and sends no Google
// credentials. The process environment is left untouched.
// The SDK dials lazily, so ctx only bounds client construction.
func NewAdapter(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseOrDefault(cfg.DatabaseID), clientOptions(cfg)...)
	if err != nil {
		return nil, classify(fmt.Errorf("open firestore client: %w", err))
	}

	log.Info("firestore client ready",
		"project_id", cfg.ProjectID,
		"database_id", databaseOrDefault(cfg.DatabaseID),
		"emulator", cfg.EmulatorHost != "",
	)
	return &Adapter{client: client, logger: log, timeout: cfg.OperationTimeout}, nil
}

func clientOptions(cfg Config) []option.ClientOption {
	if cfg.EmulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			option.WithGRPCDialOption(grpc.WithPerRPCCredentials(emulatorCreds{})),
		}
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return opts
}

// emulatorCreds authenticates as the emulator owner, which bypasses
// security rules.
type emulatorCreds struct{}

func (emulatorCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer owner"}, nil
}

func (emulatorCreds) RequireTransportSecurity() bool { return false }

func databaseOrDefault(id string) string {
	if id == "" {
		return firestore.DefaultDatabaseID
	}
	return id
}

// collection returns the SDK reference for name.
func (a *Adapter) collection(name string) *firestore.CollectionRef {
	return a.client.Collection(name)
}

// run refuses work after Close and bounds fn by the operation timeout.
func (a *Adapter) run(ctx context.Context, fn func(context.Context) error) error {
	if err := a.guard.Open(BackendName); err != nil {
		return err
	}
	opCtx, cancel := store.Bound(ctx, a.timeout)
	defer cancel()
	return fn(opCtx)
}

// HealthCheck lists at most one collection to prove the database answers.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	err := a.run(ctx, func(ctx context.Context) error {
		_, err := a.client.Collections(ctx).Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	})
	if err != nil && !errors.Is(err, store.ErrClosed) {
		a.logger.Warn("firestore health check failed", "error", err)
		return classify(fmt.Errorf("firestore health check: %w", err))
	}
	return err
}

// Close releases the SDK client once; later calls are no-ops.
func (a *Adapter) Close() error {
	if !a.guard.Shutdown() || a.client == nil {
		return nil
	}
	if err := a.client.Close(); err != nil {
		return fmt.Errorf("close firestore client: %w", err)
	}
	return nil
}
