// Package convert maps API wire shapes to domain models and back.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/motectl/internal/model"
)

// DecodeCollections accepts the list envelope {"items": [...]} or a bare array.
// Any other shape yields an empty list, matching the API's lenient contract.
func DecodeCollections(b []byte) ([]model.Collection, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return []model.Collection{}, nil
	}
	switch b[0] {
	case '[':
		var out []model.Collection
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		return out, nil
	case '{':
		var env struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		if t := bytes.TrimSpace(env.Items); len(t) == 0 || t[0] != '[' {
			return []model.Collection{}, nil
		}
		var out []model.Collection
		if err := json.Unmarshal(env.Items, &out); err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		return out, nil
	default:
		return []model.Collection{}, nil
	}
}

// CollectionBody is the create/update request body. Empty rules are omitted.
type CollectionBody struct {
	Name       string               `json:"name"`
	Type       model.CollectionType `json:"type"`
	Schema     model.Schema         `json:"schema"`
	ListRule   string               `json:"listRule,omitempty"`
	ViewRule   string               `json:"viewRule,omitempty"`
	CreateRule string               `json:"createRule,omitempty"`
	UpdateRule string               `json:"updateRule,omitempty"`
	DeleteRule string               `json:"deleteRule,omitempty"`
}

// ToCollectionBody builds the request body for c with a trimmed name.
func ToCollectionBody(c model.Collection) CollectionBody {
	r := c.Rules()
	schema := c.Schema
	if schema == nil {
		schema = model.Schema{}
	}
	return CollectionBody{
		Name:       strings.TrimSpace(c.Name),
		Type:       c.TypeOrDefault(),
		Schema:     schema,
		ListRule:   r[0],
		ViewRule:   r[1],
		CreateRule: r[2],
		UpdateRule: r[3],
		DeleteRule: r[4],
	}
}

// DecodeRecord decodes a record keeping numbers as json.Number.
func DecodeRecord(b []byte) (model.Record, error) {
	var r model.Record
	if err := model.DecodeJSON(b, &r); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	if r == nil {
		r = model.Record{}
	}
	return r, nil
}

// DecodeCandidates splits an import document into raw candidate definitions
// and their decoded form. The raw form is what gets submitted on apply.
func DecodeCandidates(b []byte) ([]json.RawMessage, []model.Collection, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, nil, err
	}
	out := make([]model.Collection, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, nil, fmt.Errorf("collection %d: %w", i, err)
		}
	}
	return raws, out, nil
}
