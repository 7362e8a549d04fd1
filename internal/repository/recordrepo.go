package repository

import (
	"context"
	"io"

	"github.com/and161185/motectl/internal/model"
)

// RecordRepository provides access to the records of a collection.
type RecordRepository interface {
	// ListRecords returns one page of records.
	ListRecords(ctx context.Context, collection string, q model.ListQuery) (model.RecordPage, error)
	// GetRecord loads a record by id.
	GetRecord(ctx context.Context, collection, id string) (model.Record, error)
	// CreateRecord creates a record from the payload.
	CreateRecord(ctx context.Context, collection string, p model.WritePayload) (model.Record, error)
	// UpdateRecord patches a record from the payload.
	UpdateRecord(ctx context.Context, collection, id string, p model.WritePayload) (model.Record, error)
	// DeleteRecord deletes a record.
	DeleteRecord(ctx context.Context, collection, id string) error
	// DownloadFile streams a stored file into w.
	DownloadFile(ctx context.Context, collection, id, filename string, w io.Writer) (int64, error)
}

// RecordLookup is the narrow capability used by relation pickers.
type RecordLookup interface {
	// SearchRecords returns up to perPage records matching filter.
	SearchRecords(ctx context.Context, collection, filter string, perPage int) ([]model.Record, error)
	// GetRecord loads a record by id.
	GetRecord(ctx context.Context, collection, id string) (model.Record, error)
}
