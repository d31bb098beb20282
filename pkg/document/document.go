// Package document defines the value types shared by the store gateway, the
// query composer and the store backends: documents, identifiers, filters,
// query specs, page results and cursors.
package document

// Document is a schemaless record read from a collection.
// ID is the store-assigned handle. A legacy numeric "id" stored inside the
// record stays in Fields and never replaces the handle.
type Document struct {
	ID     string
	Fields map[string]any
}

// Flatten renders the document as a single map: the handle under "id",
// followed by the stored fields. A stored "id" field overrides the handle.
func (d Document) Flatten() map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	out["id"] = d.ID
	for k, v := range d.Fields {
		out[k] = v
	}
	return out
}

// Get returns a stored field and whether it exists.
func (d Document) Get(field string) (any, bool) {
	if d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[field]
	return v, ok
}
