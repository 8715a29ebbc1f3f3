// Package snapshot exports every table of a Service as one JSON document and
// restores it later. Documents are written to a Sink: a local directory or an
// S3 bucket.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/loft/pkg/core"
)

// FormatVersion is written into every document.
const FormatVersion = 1

// DefaultKey is the object name used when none is given.
const DefaultKey = "loft-snapshot.json"

// Sink stores snapshot documents by key.
// Get returns core.ErrNotFound (wrapped) when the key is absent.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Source is what Export reads from. *core.Service satisfies it.
type Source interface {
	core.Reader
	Tables() []core.Schema
}

// Target is what Import writes to. *core.Service satisfies it.
type Target interface {
	core.Writer
	Tables() []core.Schema
}

// Entry is one exported record.
type Entry struct {
	ID       string      `json:"id"`
	ParentID string      `json:"parent_id,omitempty"`
	Fields   core.Fields `json:"fields"`
}

// Table is the dump of one table, in storage order.
type Table struct {
	Name    string  `json:"name"`
	Records []Entry `json:"records"`
}

// Document is the exported form of a whole store.
type Document struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Tables     []Table   `json:"tables"`
}

// Count returns the number of records in the document.
func (d Document) Count() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Records)
	}
	return n
}

// Build reads every table of src into a Document.
func Build(ctx context.Context, src Source) (Document, error) {
	doc := Document{Version: FormatVersion, ExportedAt: time.Now().UTC()}
	for _, sc := range src.Tables() {
		recs, err := src.All(ctx, sc.Table)
		if err != nil {
			return Document{}, fmt.Errorf("export %s: %w", sc.Table, err)
		}
		t := Table{Name: sc.Table, Records: make([]Entry, 0, len(recs))}
		for _, r := range recs {
			t.Records = append(t.Records, Entry{ID: r.ID, ParentID: r.ParentID, Fields: r.Fields})
		}
		doc.Tables = append(doc.Tables, t)
	}
	return doc, nil
}

// Export writes a snapshot of src to sink under key.
func Export(ctx context.Context, src Source, sink Sink, key string) (Document, error) {
	if key == "" {
		key = DefaultKey
	}
	doc, err := Build(ctx, src)
	if err != nil {
		return Document{}, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := sink.Put(ctx, key, data); err != nil {
		return Document{}, fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return doc, nil
}

// Read fetches and decodes the document stored under key.
func Read(ctx context.Context, sink Sink, key string) (Document, error) {
	if key == "" {
		key = DefaultKey
	}
	data, err := sink.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("snapshot %s: unsupported version %d", key, doc.Version)
	}
	return doc, nil
}

// Import upserts every record of the document stored under key into dst.
// Tables dst does not know are skipped. It returns the number of records written.
func Import(ctx context.Context, dst Target, sink Sink, key string) (int, error) {
	doc, err := Read(ctx, sink, key)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool)
	for _, sc := range dst.Tables() {
		known[sc.Table] = true
	}

	written := 0
	for _, t := range doc.Tables {
		if !known[t.Name] {
			continue
		}
		for _, e := range t.Records {
			rec := core.Record{ID: e.ID, ParentID: e.ParentID, Fields: e.Fields}
			if err := dst.Upsert(ctx, t.Name, rec); err != nil {
				return written, fmt.Errorf("import %s/%s: %w", t.Name, e.ID, err)
			}
			written++
		}
	}
	return written, nil
}
