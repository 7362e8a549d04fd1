package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/crypto"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

// AdminPerPage is the page size of the logs and jobs views.
const AdminPerPage = 20

// SettingsState is the settings document under edit.
type SettingsState struct {
	Values model.Settings
	saved  crypto.Fingerprint
}

func newSettingsState(s model.Settings) *SettingsState {
	if s == nil {
		s = model.Settings{}
	}
	st := &SettingsState{Values: s}
	st.saved, _ = crypto.FingerprintOf(s)
	return st
}

// Set replaces one top-level setting.
func (s *SettingsState) Set(key string, v any) { s.Values[key] = v }

// IsDirty reports edits since load or save.
func (s *SettingsState) IsDirty() bool {
	sum, err := crypto.FingerprintOf(s.Values)
	return err != nil || sum != s.saved
}

// LogsState is one page of request logs.
type LogsState struct {
	Page   int
	Filter model.LogFilter
	Result model.Page[model.LogEntry]
}

// JobsState is one page of background jobs.
type JobsState struct {
	Page   int
	Filter model.JobFilter
	Result model.Page[model.Job]
}

// AdminService backs the settings, logs, jobs and crons views.
type AdminService struct {
	repo    repository.AdminRepository
	confirm Confirmer
	busy    *Busy
	log     *zap.Logger
	now     func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(repo repository.AdminRepository, c Confirmer, busy *Busy, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{repo: repo, confirm: c, busy: busy, log: log, now: time.Now}
}

// LoadSettings fetches the settings document.
func (s *AdminService) LoadSettings(ctx context.Context) (*SettingsState, error) {
	v, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return newSettingsState(v), nil
}

// SaveSettings patches the document and takes the stored result as clean.
func (s *AdminService) SaveSettings(ctx context.Context, st *SettingsState) error {
	var saved model.Settings
	err := s.busy.Do(func() error {
		var err error
		saved, err = s.repo.UpdateSettings(ctx, st.Values)
		return err
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	*st = *newSettingsState(saved)
	return nil
}

// LoadLogs fetches the current page. A failed load leaves an empty page.
func (s *AdminService) LoadLogs(ctx context.Context, st *LogsState) error {
	if st.Page < 1 {
		st.Page = 1
	}
	p, err := s.repo.ListLogs(ctx, st.Page, AdminPerPage, st.Filter)
	if err != nil {
		st.Result = model.Page[model.LogEntry]{Page: st.Page, PerPage: AdminPerPage, TotalPages: 1}
		return fmt.Errorf("load logs: %w", err)
	}
	st.Result = p
	return nil
}

func (s *AdminService) LogStats(ctx context.Context) (model.Stats, error) {
	return s.repo.LogStats(ctx)
}

// ClearLogs deletes every log entry after confirmation.
func (s *AdminService) ClearLogs(ctx context.Context) error {
	if err := confirm(ctx, s.confirm, "Are you sure you want to clear all logs? This cannot be undone."); err != nil {
		return err
	}
	return s.busy.Do(func() error { return s.repo.ClearLogs(ctx) })
}

// LoadJobs fetches the current page. A failed load leaves an empty page.
func (s *AdminService) LoadJobs(ctx context.Context, st *JobsState) error {
	if st.Page < 1 {
		st.Page = 1
	}
	p, err := s.repo.ListJobs(ctx, st.Page, AdminPerPage, st.Filter)
	if err != nil {
		st.Result = model.Page[model.Job]{Page: st.Page, PerPage: AdminPerPage, TotalPages: 1}
		return fmt.Errorf("load jobs: %w", err)
	}
	st.Result = p
	return nil
}

func (s *AdminService) JobStats(ctx context.Context) (model.Stats, error) {
	return s.repo.JobStats(ctx)
}

func (s *AdminService) RetryJob(ctx context.Context, id string) error {
	return s.busy.Do(func() error { return s.repo.RetryJob(ctx, id) })
}

// RetryAllJobs requeues every failed job and returns the count.
func (s *AdminService) RetryAllJobs(ctx context.Context) (int, error) {
	if err := confirm(ctx, s.confirm, "Are you sure you want to retry all failed jobs?"); err != nil {
		return 0, err
	}
	var n int
	err := s.busy.Do(func() error {
		var err error
		n, err = s.repo.RetryAllJobs(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("jobs retried", zap.Int("count", n))
	return n, nil
}

func (s *AdminService) DeleteJob(ctx context.Context, id string) error {
	if err := confirm(ctx, s.confirm, "Are you sure you want to delete this job?"); err != nil {
		return err
	}
	return s.busy.Do(func() error { return s.repo.DeleteJob(ctx, id) })
}

// ClearJobsMessage is the confirmation text for clearing jobs.
func ClearJobsMessage(status string) string {
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("Are you sure you want to clear %s jobs? This cannot be undone.", status)
}

// ClearJobs deletes jobs by status, or all jobs when status is "".
func (s *AdminService) ClearJobs(ctx context.Context, status string) error {
	if err := confirm(ctx, s.confirm, ClearJobsMessage(status)); err != nil {
		return err
	}
	return s.busy.Do(func() error { return s.repo.ClearJobs(ctx, status) })
}

// ListCrons returns the cron jobs. A missing next run is computed from the
// schedule; unparsable schedules keep 0.
func (s *AdminService) ListCrons(ctx context.Context) ([]model.CronEntry, error) {
	entries, err := s.repo.ListCrons(ctx)
	if err != nil {
		return nil, fmt.Errorf("load crons: %w", err)
	}
	now := s.now()
	for i := range entries {
		if entries[i].NextRun != 0 {
			continue
		}
		next, err := NextRun(entries[i].Schedule, now)
		if err != nil {
			s.log.Debug("bad cron schedule", zap.String("name", entries[i].Name), zap.Error(err))
			continue
		}
		entries[i].NextRun = next.Unix()
	}
	return entries, nil
}

// NextRun evaluates a standard five-field cron expression (descriptors such
// as @hourly included) after now.
func NextRun(schedule string, now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// StatusClass buckets an HTTP status for display.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "server-error"
	case status >= 400:
		return "client-error"
	case status >= 300:
		return "redirect"
	default:
		return "success"
	}
}

// JobStatusClass buckets a job status for display.
func JobStatusClass(status string) string {
	switch status {
	case "running":
		return "running"
	case "completed", "success":
		return "success"
	case "failed":
		return "failed"
	default:
		return "pending"
	}
}
