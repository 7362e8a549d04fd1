// Package repository defines the capabilities the services consume. The
// REST client implements the remote ones; local state has its own backend.
package repository

import (
	"context"
	"encoding/json"

	"github.com/and161185/motectl/internal/model"
)

// CollectionRepository provides access to collection definitions.
type CollectionRepository interface {
	// ListCollections returns every live collection.
	ListCollections(ctx context.Context) ([]model.Collection, error)
	// CreateCollection creates a collection.
	CreateCollection(ctx context.Context, c model.Collection) error
	// UpdateCollection replaces the collection currently named name.
	UpdateCollection(ctx context.Context, name string, c model.Collection) error
	// DeleteCollection deletes a collection and all of its records.
	DeleteCollection(ctx context.Context, name string) error
	// ExportCollections returns the bulk definition dump as raw JSON.
	ExportCollections(ctx context.Context) (json.RawMessage, error)
	// ImportCollections submits a candidate set as one batch.
	ImportCollections(ctx context.Context, candidates []json.RawMessage, deleteMissing bool) error
}
