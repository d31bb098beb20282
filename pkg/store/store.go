// Package store defines the contract every document-store backend implements:
// collection and document handles, point reads and writes, and a chainable
// query builder.
package store

import (
	"context"

	"github.com/nimburion/docgate/pkg/document"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// Client is a connected document-store backend.
type Client interface {
	Adapter
	// Backend names the store implementation, e.g. "firestore".
	Backend() string
	Collection(name string) CollectionRef
}

// CollectionRef addresses a named collection of documents.
type CollectionRef interface {
	// Doc returns a handle to the document with the given store handle.
	Doc(handle string) DocumentRef
	// NewDoc returns a handle with a freshly assigned store handle.
	NewDoc() DocumentRef
	// Query starts an unfiltered query on the collection.
	Query() Query
}

// DocumentRef addresses a single document.
type DocumentRef interface {
	ID() string
	// Get returns a snapshot with Exists=false when the document is missing.
	Get(ctx context.Context) (Snapshot, error)
	// Set creates or fully overwrites the document.
	Set(ctx context.Context, fields map[string]any) error
	// Update merges fields into an existing document and fails with
	// ErrNotFound when the document does not exist.
	Update(ctx context.Context, fields map[string]any) error
	Delete(ctx context.Context) error
}

// Query is an immutable query builder; every call returns a new Query.
type Query interface {
	Where(field string, op document.Operator, value any) Query
	// OrderBy sorts ascending by field.
	OrderBy(field string) Query
	Limit(n int) Query
	// StartAfter resumes strictly after the document referenced by cursor.
	StartAfter(cursor document.Cursor) Query
	Documents(ctx context.Context) ([]Snapshot, error)
}

// Snapshot is a document as returned by a read.
type Snapshot struct {
	ID     string
	Exists bool
	Data   map[string]any
}

// Document converts the snapshot into a document.Document.
func (s Snapshot) Document() document.Document {
	return document.Document{ID: s.ID, Fields: s.Data}
}
