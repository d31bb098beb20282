// Package factory selects and connects the document store backend named by
// configuration.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimburion/docgate/pkg/config"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/dynamodb"
	"github.com/nimburion/docgate/pkg/store/firestore"
	"github.com/nimburion/docgate/pkg/store/memory"
	"github.com/nimburion/docgate/pkg/store/mongodb"
)

// NewClient connects the backend selected by cfg.Type within ctx.
// It does not fall back to another backend when the selected one fails.
func NewClient(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (store.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.StoreTypeFirestore:
		adapter, err := firestore.NewAdapter(ctx, firestore.Config{
			ProjectID:        cfg.Firebase.ProjectID,
			DatabaseID:       cfg.Firebase.DatabaseID,
			CredentialsFile:  cfg.Firebase.CredentialsFile,
			APIKey:           cfg.Firebase.APIKey,
			EmulatorHost:     cfg.Firebase.EmulatorHost,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		client, err := firestore.NewClient(adapter, log)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return client, nil
	case config.StoreTypeMongoDB:
		adapter, err := mongodb.NewAdapter(ctx, mongodb.Config{
			URL:              cfg.MongoDB.URL,
			Database:         cfg.MongoDB.Database,
			ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		client, err := mongodb.NewClient(adapter, log)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return client, nil
	case config.StoreTypeDynamoDB:
		adapter, err := dynamodb.NewAdapter(ctx, dynamodb.Config{
			Region:           cfg.DynamoDB.Region,
			Endpoint:         cfg.DynamoDB.Endpoint,
			AccessKeyID:      cfg.DynamoDB.AccessKeyID,
			SecretAccessKey:  cfg.DynamoDB.SecretAccessKey,
			SessionToken:     cfg.DynamoDB.SessionToken,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		client, err := dynamodb.NewClient(adapter, cfg.DynamoDB.KeyAttribute, log)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return client, nil
	case config.StoreTypeMemory:
		return memory.NewClient(log), nil
	default:
		return nil, fmt.Errorf("unsupported store.type %q (supported: %s)", cfg.Type, strings.Join(Supported(), ", "))
	}
}

// Supported lists the backend names NewClient accepts.
func Supported() []string {
	return []string{
		config.StoreTypeFirestore,
		config.StoreTypeMongoDB,
		config.StoreTypeDynamoDB,
		config.StoreTypeMemory,
	}
}
