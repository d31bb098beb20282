package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
)

const defaultOperationTimeout = 5 * time.Second

// Config holds DynamoDB adapter configuration. Static keys are optional;
// without them the default AWS credential chain applies.
type Config struct {
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	OperationTimeout time.Duration
}

// Adapter wraps the SDK client with a closed guard and a per-call timeout.
type Adapter struct {
	client  *dynamodb.Client
	logger  logger.Logger
	timeout time.Duration
	guard   store.Guard
}

// NewAdapter loads AWS configuration, points the client at Endpoint when set
// (DynamoDB Local), and lists one table to prove the credentials work.
// Tables must already exist.
func NewAdapter(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.Region == "" {
		return nil, errors.New("dynamodb region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	a := &Adapter{client: client, logger: log, timeout: cfg.OperationTimeout}
	if err := a.ping(ctx); err != nil {
		return nil, err
	}

	log.Info("dynamodb client ready", "region", cfg.Region, "endpoint", cfg.Endpoint)
	return a, nil
}

// invoke runs one SDK call behind the guard and the operation timeout.
func invoke[In, Out any](ctx context.Context, a *Adapter, in *In,
	call func(context.Context, *In, ...func(*dynamodb.Options)) (*Out, error)) (*Out, error) {
	if err := a.guard.Open(BackendName); err != nil {
		return nil, err
	}
	opCtx, cancel := store.Bound(ctx, a.timeout)
	defer cancel()
	return call(opCtx, in)
}

func (a *Adapter) ping(ctx context.Context) error {
	_, err := invoke(ctx, a, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}, a.client.ListTables)
	if err != nil && !errors.Is(err, store.ErrClosed) {
		return classify(fmt.Errorf("dynamodb ping: %w", err))
	}
	return err
}

func (a *Adapter) GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	return invoke(ctx, a, input, a.client.GetItem)
}

func (a *Adapter) PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	return invoke(ctx, a, input, a.client.PutItem)
}

func (a *Adapter) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	return invoke(ctx, a, input, a.client.UpdateItem)
}

func (a *Adapter) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
	return invoke(ctx, a, input, a.client.DeleteItem)
}

// Scan follows LastEvaluatedKey until the table is exhausted. The operation
// timeout covers the whole scan, not each page.
func (a *Adapter) Scan(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	if err := a.guard.Open(BackendName); err != nil {
		return nil, err
	}
	opCtx, cancel := store.Bound(ctx, a.timeout)
	defer cancel()

	var items []map[string]types.AttributeValue
	for pages := dynamodb.NewScanPaginator(a.client, input); pages.HasMorePages(); {
		page, err := pages.NextPage(opCtx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	err := a.ping(ctx)
	if err != nil && !errors.Is(err, store.ErrClosed) {
		a.logger.Warn("dynamodb health check failed", "error", err)
	}
	return err
}

// Close only flips the guard; the SDK client holds no connection to release.
func (a *Adapter) Close() error {
	a.guard.Shutdown()
	return nil
}
