package document

import (
	"encoding/base64"
	"fmt"
)

// QuerySpec declaratively describes a filtered, sorted, paginated read.
// Conflicting filters are not validated here; the backing store reports them.
type QuerySpec struct {
	Table        string
	Filters      []Filter
	SortingField string
	Limit        int
	Cursor       Cursor
}

// PageResult is one page of a query. Cursor references the last document of
// the raw result and is empty when the result set was empty.
type PageResult struct {
	Data   []Document
	Cursor Cursor
}

// Cursor is an opaque continuation token referencing a document position.
// It is only meaningful for a follow-up QuerySpec on the same table, filters
// and sorting field.
type Cursor string

// NewCursor builds a cursor that resumes after the document with handle.
func NewCursor(handle string) Cursor {
	if handle == "" {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(handle)))
}

// IsZero reports whether the cursor is absent.
func (c Cursor) IsZero() bool { return c == "" }

// Handle decodes the document handle referenced by the cursor.
func (c Cursor) Handle() (string, error) {
	if c.IsZero() {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return "", fmt.Errorf("malformed cursor %q: %w", string(c), err)
	}
	return string(raw), nil
}

func (c Cursor) String() string { return string(c) }
