package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

var (
	_ repository.AuthRepository  = (*Client)(nil)
	_ repository.AdminRepository = (*Client)(nil)
)

type loginResponse struct {
	Token string      `json:"token"`
	User  model.Admin `json:"user"`
}

// Login implements repository.AuthRepository.
func (c *Client) Login(ctx context.Context, email, password string) (string, model.Admin, error) {
	var resp loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return "", model.Admin{}, err
	}
	return resp.Token, resp.User, nil
}

type settingsEnvelope struct {
	Settings model.Settings `json:"settings"`
}

// GetSettings returns the settings document. Servers answering with a bare
// object instead of the envelope are accepted too.
func (c *Client) GetSettings(ctx context.Context) (model.Settings, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/settings", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeSettings(raw)
}

func (c *Client) UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPatch, "/settings", nil, s, &raw); err != nil {
		return nil, err
	}
	return decodeSettings(raw)
}

func decodeSettings(raw json.RawMessage) (model.Settings, error) {
	if len(raw) == 0 {
		return model.Settings{}, nil
	}
	var env map[string]json.RawMessage
	if err := model.DecodeJSON(raw, &env); err != nil {
		return nil, err
	}
	src := raw
	if inner, ok := env["settings"]; ok {
		src = inner
	}
	var s model.Settings
	if err := model.DecodeJSON(src, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = model.Settings{}
	}
	return s, nil
}

func pageValues(page, perPage int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("perPage", strconv.Itoa(perPage))
	return v
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func (c *Client) ListLogs(ctx context.Context, page, perPage int, f model.LogFilter) (model.Page[model.LogEntry], error) {
	q := pageValues(page, perPage)
	setIf(q, "status", f.Status)
	setIf(q, "method", f.Method)
	setIf(q, "path", f.Path)
	var out model.Page[model.LogEntry]
	if err := c.doJSON(ctx, http.MethodGet, "/logs", q, nil, &out); err != nil {
		return model.Page[model.LogEntry]{}, err
	}
	return normalizePage(out), nil
}

func (c *Client) LogStats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := c.doJSON(ctx, http.MethodGet, "/logs/stats", nil, nil, &s)
	return s, err
}

func (c *Client) ClearLogs(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/logs", nil, nil, nil)
}

func (c *Client) ListJobs(ctx context.Context, page, perPage int, f model.JobFilter) (model.Page[model.Job], error) {
	q := pageValues(page, perPage)
	setIf(q, "status", f.Status)
	setIf(q, "name", f.Name)
	var out model.Page[model.Job]
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", q, nil, &out); err != nil {
		return model.Page[model.Job]{}, err
	}
	return normalizePage(out), nil
}

func (c *Client) JobStats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := c.doJSON(ctx, http.MethodGet, "/jobs/stats", nil, nil, &s)
	return s, err
}

func (c *Client) RetryJob(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/jobs/"+seg(id)+"/retry", nil, nil, nil)
}

func (c *Client) RetryAllJobs(ctx context.Context) (int, error) {
	var out struct {
		Retried int `json:"retried"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/jobs/retry-all", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Retried, nil
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/jobs/"+seg(id), nil, nil, nil)
}

func (c *Client) ClearJobs(ctx context.Context, status string) error {
	q := url.Values{}
	setIf(q, "status", status)
	return c.doJSON(ctx, http.MethodDelete, "/jobs", q, nil, nil)
}

// ListCrons accepts {"items": [...]} or a bare array.
func (c *Client) ListCrons(ctx context.Context) ([]model.CronEntry, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/crons", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := []model.CronEntry{}
	if len(raw) == 0 {
		return out, nil
	}
	if raw[0] == '[' {
		err := json.Unmarshal(raw, &out)
		return out, err
	}
	var env struct {
		Items []model.CronEntry `json:"items"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Items != nil {
		out = env.Items
	}
	return out, nil
}

func normalizePage[T any](p model.Page[T]) model.Page[T] {
	if p.Items == nil {
		p.Items = []T{}
	}
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	return p
}
