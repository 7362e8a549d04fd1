package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/and161185/motectl/internal/convert"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

var _ repository.CollectionRepository = (*Client)(nil)

// ListCollections implements repository.CollectionRepository.
func (c *Client) ListCollections(ctx context.Context) ([]model.Collection, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, &raw); err != nil {
		return nil, err
	}
	return convert.DecodeCollections(raw)
}

func (c *Client) CreateCollection(ctx context.Context, col model.Collection) error {
	return c.doJSON(ctx, http.MethodPost, "/collections", nil, convert.ToCollectionBody(col), nil)
}

func (c *Client) UpdateCollection(ctx context.Context, name string, col model.Collection) error {
	return c.doJSON(ctx, http.MethodPatch, "/collections/"+seg(name), nil, convert.ToCollectionBody(col), nil)
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/collections/"+seg(name), nil, nil, nil)
}

// ExportCollections returns the export document verbatim.
func (c *Client) ExportCollections(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/collections/export", nil, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = json.RawMessage("[]")
	}
	return raw, nil
}

type importBody struct {
	Collections   []json.RawMessage `json:"collections"`
	DeleteMissing bool              `json:"deleteMissing"`
}

// ImportCollections submits the candidates unchanged with the delete-missing flag.
func (c *Client) ImportCollections(ctx context.Context, candidates []json.RawMessage, deleteMissing bool) error {
	if candidates == nil {
		candidates = []json.RawMessage{}
	}
	return c.doJSON(ctx, http.MethodPost, "/collections/import", nil, importBody{Collections: candidates, DeleteMissing: deleteMissing}, nil)
}
