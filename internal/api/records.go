package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"

	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
	"github.com/and161185/motectl/internal/schema"
)

var (
	_ repository.RecordRepository = (*Client)(nil)
	_ repository.RecordLookup     = (*Client)(nil)
)

func recordsPath(collection string) string {
	return "/collections/" + seg(collection) + "/records"
}

func listValues(q model.ListQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// ListRecords implements repository.RecordRepository. Missing envelope
// fields default to one page holding the returned items.
func (c *Client) ListRecords(ctx context.Context, collection string, q model.ListQuery) (model.RecordPage, error) {
	var page model.RecordPage
	if err := c.doJSON(ctx, http.MethodGet, recordsPath(collection), listValues(q), nil, &page); err != nil {
		return model.RecordPage{}, err
	}
	page = normalizePage(page)
	if page.TotalItems == 0 {
		page.TotalItems = len(page.Items)
	}
	return page, nil
}

// SearchRecords implements repository.RecordLookup.
func (c *Client) SearchRecords(ctx context.Context, collection, filter string, perPage int) ([]model.Record, error) {
	page, err := c.ListRecords(ctx, collection, model.ListQuery{PerPage: perPage, Filter: filter})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *Client) GetRecord(ctx context.Context, collection, id string) (model.Record, error) {
	var r model.Record
	if err := c.doJSON(ctx, http.MethodGet, recordsPath(collection)+"/"+seg(id), nil, nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) CreateRecord(ctx context.Context, collection string, p model.WritePayload) (model.Record, error) {
	return c.writeRecord(ctx, http.MethodPost, recordsPath(collection), p)
}

func (c *Client) UpdateRecord(ctx context.Context, collection, id string, p model.WritePayload) (model.Record, error) {
	return c.writeRecord(ctx, http.MethodPatch, recordsPath(collection)+"/"+seg(id), p)
}

func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	return c.doJSON(ctx, http.MethodDelete, recordsPath(collection)+"/"+seg(id), nil, nil, nil)
}

// writeRecord sends the payload as JSON, or as multipart form data when it
// carries staged uploads.
func (c *Client) writeRecord(ctx context.Context, method, path string, p model.WritePayload) (model.Record, error) {
	var out model.Record
	if !p.Multipart() {
		fields := p.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		if err := c.doJSON(ctx, method, path, nil, fields, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	body, ct, err := EncodeMultipart(p)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, nil, body, ct)
	if err != nil {
		return nil, err
	}
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeMultipart writes one text part per non-nil field in name order
// followed by one file part per upload. Nil removal markers only travel in
// JSON bodies.
func EncodeMultipart(p model.WritePayload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	names := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := p.Fields[k]
		if v == nil {
			continue
		}
		if err := mw.WriteField(k, schema.EncodeValue(v)); err != nil {
			return nil, "", err
		}
	}

	files := make([]string, 0, len(p.Files))
	for k := range p.Files {
		files = append(files, k)
	}
	sort.Strings(files)
	for _, k := range files {
		f := p.Files[k]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, k, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// FileURL is the retrieval URL of a stored file.
func (c *Client) FileURL(collection, id, filename string) string {
	return c.url("/files/"+seg(collection)+"/"+seg(id)+"/"+seg(filename), nil)
}

// DownloadFile implements repository.RecordRepository.
func (c *Client) DownloadFile(ctx context.Context, collection, id, filename string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/files/"+seg(collection)+"/"+seg(id)+"/"+seg(filename), nil, nil, "")
	if err != nil {
		return 0, err
	}
	req.Header.Del("Accept")
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}
