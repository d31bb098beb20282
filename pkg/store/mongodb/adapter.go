package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultOperationTimeout = 5 * time.Second
	disconnectTimeout       = 5 * time.Second
	appName                 = "docgate"
)

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

func (c Config) validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("mongodb url is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("mongodb database is required"))
	}
	return errors.Join(errs...)
}

// Adapter owns the driver connection for one database and bounds every call
// by the operation timeout.
type Adapter struct {
	client  *mongo.Client
	db      *mongo.Database
	logger  logger.Logger
	timeout time.Duration
	guard   store.Guard
}

// NewAdapter connects and pings the primary. Collections are never created
// up front; MongoDB creates them on first write.
func NewAdapter(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	dialCtx, cancel := store.Bound(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URL).
		SetAppName(appName).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("connect to mongodb: %w", err))
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, store.Mark(store.ErrUnavailable, fmt.Errorf("ping mongodb: %w", err))
	}

	log.Info("mongodb connected", "database", cfg.Database)
	return &Adapter{
		client:  client,
		db:      client.Database(cfg.Database),
		logger:  log,
		timeout: cfg.OperationTimeout,
	}, nil
}

// call runs fn against the named collection within the operation timeout.
func (a *Adapter) call(ctx context.Context, name string, fn func(context.Context, *mongo.Collection) error) error {
	if err := a.guard.Open(BackendName); err != nil {
		return err
	}
	opCtx, cancel := store.Bound(ctx, a.timeout)
	defer cancel()
	return fn(opCtx, a.db.Collection(name))
}

// FindOne decodes the first match into result. It returns
// mongo.ErrNoDocuments when nothing matches.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter interface{}, result interface{}) error {
	return a.call(ctx, collection, func(ctx context.Context, col *mongo.Collection) error {
		return col.FindOne(ctx, filter).Decode(result)
	})
}

// Find drains the cursor for filter.
func (a *Adapter) Find(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOptions) ([]bson.M, error) {
	var docs []bson.M
	err := a.call(ctx, collection, func(ctx context.Context, col *mongo.Collection) error {
		cur, err := col.Find(ctx, filter, opts...)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	return docs, err
}

// ReplaceOne upserts doc over the match for filter.
func (a *Adapter) ReplaceOne(ctx context.Context, collection string, filter, doc interface{}) (*mongo.UpdateResult, error) {
	var res *mongo.UpdateResult
	err := a.call(ctx, collection, func(ctx context.Context, col *mongo.Collection) (err error) {
		res, err = col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
		return err
	})
	return res, err
}

func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error) {
	var res *mongo.UpdateResult
	err := a.call(ctx, collection, func(ctx context.Context, col *mongo.Collection) (err error) {
		res, err = col.UpdateOne(ctx, filter, update)
		return err
	})
	return res, err
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	var res *mongo.DeleteResult
	err := a.call(ctx, collection, func(ctx context.Context, col *mongo.Collection) (err error) {
		res, err = col.DeleteOne(ctx, filter)
		return err
	})
	return res, err
}

// HealthCheck pings the primary.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.guard.Open(BackendName); err != nil {
		return err
	}
	pingCtx, cancel := store.Bound(ctx, a.timeout)
	defer cancel()
	if err := a.client.Ping(pingCtx, readpref.Primary()); err != nil {
		a.logger.Warn("mongodb ping failed", "error", err)
		return classify(fmt.Errorf("mongodb health check: %w", err))
	}
	return nil
}

// Close disconnects once; later calls are no-ops.
func (a *Adapter) Close() error {
	if !a.guard.Shutdown() || a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
