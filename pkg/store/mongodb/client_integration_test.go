package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/testutil"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// TestClient_Integration runs the document client against a real MongoDB
// started with testcontainers.
func TestClient_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	adapter, err := NewAdapter(ctx, Config{
		URL:              connStr,
		Database:         "docgate_test",
		ConnectTimeout:   30 * time.Second,
		OperationTimeout: 5 * time.Second,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	client, err := NewClient(adapter, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	col := client.Collection("items")
	for i := 1; i <= 10; i++ {
		if err := col.Doc(fmt.Sprintf("doc-%02d", i)).Set(ctx, map[string]any{"seq": i, "kind": "x"}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	t.Run("Update", func(t *testing.T) {
		ref := col.Doc("doc-01")
		if err := ref.Update(ctx, map[string]any{"label": "first"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if snap.Data["label"] != "first" || snap.Data["kind"] != "x" {
			t.Fatalf("unexpected data: %v", snap.Data)
		}
	})

	t.Run("Paginate", func(t *testing.T) {
		page, err := col.Query().OrderBy("seq").Limit(4).Documents(ctx)
		if err != nil || len(page) != 4 {
			t.Fatalf("first page: %v, %v", page, err)
		}
		next, err := col.Query().OrderBy("seq").Limit(4).StartAfter(document.NewCursor(page[3].ID)).Documents(ctx)
		if err != nil {
			t.Fatalf("second page error: %v", err)
		}
		if len(next) != 4 || next[0].ID != "doc-05" || next[3].ID != "doc-08" {
			t.Fatalf("unexpected second page: %+v", next)
		}
	})

	t.Run("In", func(t *testing.T) {
		docs, err := col.Query().Where("seq", document.OpIn, []any{2, 3}).Documents(ctx)
		if err != nil || len(docs) != 2 {
			t.Fatalf("in query: %v, %v", docs, err)
		}
	})
}
