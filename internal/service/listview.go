package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

// DefaultPerPage is the record list page size.
const DefaultPerPage = 20

// SortDir is the direction of the list sort.
type SortDir int

const (
	SortNone SortDir = iota
	SortAsc
	SortDesc
)

func (d SortDir) String() string {
	switch d {
	case SortAsc:
		return "asc"
	case SortDesc:
		return "desc"
	default:
		return "none"
	}
}

// ListState is the record list of one collection: query, current page and
// the selection, which only ever holds ids of the current page.
type ListState struct {
	Collection string
	Page       int
	PerPage    int
	Filter     string
	SortField  string
	SortDir    SortDir

	Records    []model.Record
	TotalItems int
	TotalPages int

	selected []string
}

// NewListState returns page 1 of collection, unfiltered and unsorted.
func NewListState(collection string, perPage int) *ListState {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &ListState{Collection: collection, Page: 1, PerPage: perPage, TotalPages: 1}
}

// SetFilter replaces the opaque filter expression and returns to page 1.
func (l *ListState) SetFilter(filter string) {
	l.Filter = filter
	l.Page = 1
}

// ToggleSort cycles the field through asc, desc and unsorted. A different
// field starts at asc. Every toggle returns to page 1.
func (l *ListState) ToggleSort(field string) {
	switch {
	case l.SortField != field || l.SortDir == SortNone:
		l.SortField, l.SortDir = field, SortAsc
	case l.SortDir == SortAsc:
		l.SortDir = SortDesc
	default:
		l.SortField, l.SortDir = "", SortNone
	}
	l.Page = 1
}

// SortParam renders the sort query parameter, "-field" for descending.
func (l *ListState) SortParam() string {
	switch l.SortDir {
	case SortAsc:
		return l.SortField
	case SortDesc:
		return "-" + l.SortField
	default:
		return ""
	}
}

// Query returns the list request for the current state.
func (l *ListState) Query() model.ListQuery {
	return model.ListQuery{Page: l.Page, PerPage: l.PerPage, Filter: l.Filter, Sort: l.SortParam()}
}

// GoToPage moves to page n when it exists.
func (l *ListState) GoToPage(n int) bool {
	if n < 1 || n > l.TotalPages || n == l.Page {
		return false
	}
	l.Page = n
	return true
}

func (l *ListState) NextPage() bool { return l.GoToPage(l.Page + 1) }
func (l *ListState) PrevPage() bool { return l.GoToPage(l.Page - 1) }

func (l *ListState) onPage(id string) bool {
	for _, r := range l.Records {
		if r.ID() == id {
			return true
		}
	}
	return false
}

// ToggleSelection flips one id. Ids not on the current page are ignored.
func (l *ListState) ToggleSelection(id string) {
	for i, s := range l.selected {
		if s == id {
			l.selected = append(l.selected[:i], l.selected[i+1:]...)
			return
		}
	}
	if l.onPage(id) {
		l.selected = append(l.selected, id)
	}
}

// IsSelected reports whether id is selected.
func (l *ListState) IsSelected(id string) bool {
	for _, s := range l.selected {
		if s == id {
			return true
		}
	}
	return false
}

// Selected returns the selected ids in selection order.
func (l *ListState) Selected() []string { return append([]string(nil), l.selected...) }

// AllSelected reports whether the whole non-empty page is selected.
func (l *ListState) AllSelected() bool {
	return len(l.Records) > 0 && len(l.selected) == len(l.Records)
}

// ToggleSelectAll switches between no selection and the full page.
func (l *ListState) ToggleSelectAll() {
	if l.AllSelected() {
		l.selected = nil
		return
	}
	l.selected = l.selected[:0]
	for _, r := range l.Records {
		l.selected = append(l.selected, r.ID())
	}
}

// ClearSelection empties the selection.
func (l *ListState) ClearSelection() { l.selected = nil }

func (l *ListState) dropSelected(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := l.selected[:0]
	for _, id := range l.selected {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	l.selected = kept
}

// ListService loads and mutates record lists.
type ListService struct {
	records repository.RecordRepository
	confirm Confirmer
	busy    *Busy
	log     *zap.Logger
}

// NewListService constructs a ListService.
func NewListService(records repository.RecordRepository, c Confirmer, busy *Busy, log *zap.Logger) *ListService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ListService{records: records, confirm: c, busy: busy, log: log}
}

// Load fetches the current page. Success replaces the page and clears the
// selection; failure keeps the previous page.
func (s *ListService) Load(ctx context.Context, l *ListState) error {
	page, err := s.records.ListRecords(ctx, l.Collection, l.Query())
	if err != nil {
		return fmt.Errorf("load %s: %w", l.Collection, err)
	}
	l.Records = page.Items
	l.TotalItems = page.TotalItems
	l.TotalPages = page.TotalPages
	l.selected = nil
	return nil
}

// Delete removes one record after confirmation and reloads the page.
func (s *ListService) Delete(ctx context.Context, l *ListState, id string) error {
	if err := confirm(ctx, s.confirm, "Are you sure you want to delete this record?"); err != nil {
		return err
	}
	err := s.busy.Do(func() error {
		return s.records.DeleteRecord(ctx, l.Collection, id)
	})
	if err != nil {
		return err
	}
	return s.Load(ctx, l)
}

// BulkDeleteMessage is the confirmation text for deleting n records.
func BulkDeleteMessage(n int) string {
	noun := "record"
	if n > 1 {
		noun = "records"
	}
	return fmt.Sprintf("Are you sure you want to delete %d %s? This cannot be undone.", n, noun)
}

// BulkDelete deletes the selection one record at a time, then reloads. On
// a failure the deleted prefix leaves the selection, the error reports how
// many were deleted and the page is not reloaded.
func (s *ListService) BulkDelete(ctx context.Context, l *ListState) (int, error) {
	ids := l.Selected()
	if len(ids) == 0 {
		return 0, nil
	}
	if err := confirm(ctx, s.confirm, BulkDeleteMessage(len(ids))); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.busy.Do(func() error {
		for _, id := range ids {
			if err := s.records.DeleteRecord(ctx, l.Collection, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		l.dropSelected(ids[:deleted])
		if deleted == 0 {
			return 0, err
		}
		s.log.Warn("bulk delete stopped",
			zap.String("collection", l.Collection),
			zap.Int("deleted", deleted),
			zap.Int("selected", len(ids)),
		)
		return deleted, fmt.Errorf("deleted %d of %d records: %w", deleted, len(ids), err)
	}
	return deleted, s.Load(ctx, l)
}
