package document

import (
	"strconv"
	"strings"
)

// LegacyIDField is the field holding numeric identifiers of records that
// predate store-assigned handles.
const LegacyIDField = "id"

// ID identifies a document either by its store-assigned handle or by a legacy
// numeric id stored as a field inside the document.
type ID struct {
	handle   string
	legacy   int64
	isLegacy bool
}

// HandleID identifies a document by its store-assigned handle.
func HandleID(handle string) ID {
	return ID{handle: handle}
}

// LegacyID identifies a document by the numeric value of its "id" field.
func LegacyID(n int64) ID {
	return ID{legacy: n, isLegacy: true}
}

// ParseID classifies textual input: an integer literal is a legacy id,
// anything else is a handle.
func ParseID(s string) ID {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return LegacyID(n)
	}
	return HandleID(trimmed)
}

// IsLegacy reports whether the id refers to a legacy numeric field.
func (i ID) IsLegacy() bool { return i.isLegacy }

// Handle returns the store handle; empty for legacy ids.
func (i ID) Handle() string { return i.handle }

// Legacy returns the numeric id; zero for handles.
func (i ID) Legacy() int64 { return i.legacy }

func (i ID) String() string {
	if i.isLegacy {
		return strconv.FormatInt(i.legacy, 10)
	}
	return i.handle
}
