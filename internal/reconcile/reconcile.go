// Package reconcile classifies the differences between the live collection
// definitions and an imported candidate set. It performs no I/O.
package reconcile

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/and161185/motectl/internal/model"
)

// Reconcile returns the change set for importing candidates over live.
// Candidate changes come first in input order, then delete candidates in
// live order. A rename is reported alone, even when the schema or rules of
// the same collection changed too.
func Reconcile(live, candidates []model.Collection) []model.ImportChange {
	byID := make(map[model.ID]model.Collection, len(live))
	byName := make(map[string]model.Collection, len(live))
	for _, c := range live {
		if c.ID != "" {
			byID[c.ID] = c
		}
		byName[c.Name] = c
	}

	changes := make([]model.ImportChange, 0, len(candidates))
	seen := make(map[model.ID]bool, len(candidates))
	for _, c := range candidates {
		if c.ID != "" {
			seen[c.ID] = true
		}
		ch := model.ImportChange{Name: c.Name, ID: c.ID, FieldCount: len(c.Schema)}

		if cur, ok := byID[c.ID]; ok && c.ID != "" {
			if cur.Name != c.Name {
				ch.Kind = model.ChangeRename
				ch.OldName = cur.Name
				changes = append(changes, ch)
				continue
			}
			ch.SchemaChanged = !SchemaEqual(cur.Schema, c.Schema)
			ch.RulesChanged = !RulesEqual(cur, c)
			if ch.SchemaChanged || ch.RulesChanged {
				ch.Kind = model.ChangeUpdate
				changes = append(changes, ch)
			}
			continue
		}

		if _, taken := byName[c.Name]; taken {
			ch.Kind = model.ChangeConflict
			ch.Reason = "Name already used by another collection"
			changes = append(changes, ch)
			continue
		}

		ch.Kind = model.ChangeCreate
		changes = append(changes, ch)
	}

	for _, c := range live {
		if c.ID != "" && seen[c.ID] {
			continue
		}
		changes = append(changes, model.ImportChange{
			Kind:       model.ChangeDelete,
			Name:       c.Name,
			ID:         c.ID,
			FieldCount: len(c.Schema),
		})
	}
	return changes
}

// SchemaEqual compares the canonical mappings of two schemas. Field order
// does not matter.
func SchemaEqual(a, b model.Schema) bool {
	return cmp.Equal(a.Canonical(), b.Canonical(), cmpopts.EquateEmpty())
}

// RulesEqual compares the five access rules with nil and "" equivalent.
func RulesEqual(a, b model.Collection) bool {
	return a.Rules() == b.Rules()
}

// HasConflicts reports whether apply must be refused.
func HasConflicts(changes []model.ImportChange) bool {
	for _, ch := range changes {
		if ch.Kind == model.ChangeConflict {
			return true
		}
	}
	return false
}

// Summary counts the change set by kind.
type Summary struct {
	Creates   int
	Updates   int
	Renames   int
	Conflicts int
	Deletes   int
}

// Empty reports whether applying would change nothing.
func (s Summary) Empty() bool {
	return s.Creates+s.Updates+s.Renames+s.Deletes == 0
}

// Summarize counts changes. Delete candidates count only when deleteMissing
// is set, since they are not applied otherwise.
func Summarize(changes []model.ImportChange, deleteMissing bool) Summary {
	var s Summary
	for _, ch := range changes {
		switch ch.Kind {
		case model.ChangeCreate:
			s.Creates++
		case model.ChangeUpdate:
			s.Updates++
		case model.ChangeRename:
			s.Renames++
		case model.ChangeConflict:
			s.Conflicts++
		case model.ChangeDelete:
			if deleteMissing {
				s.Deletes++
			}
		}
	}
	return s
}
