package service

import (
	"context"

	"github.com/and161185/motectl/internal/errs"
)

// Confirmer asks the operator a yes/no question. Services call it before any
// destructive request; it must not be called while holding Busy.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, message string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// AlwaysConfirm answers yes to everything; used with --yes.
var AlwaysConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool { return true })

// Level classifies notifications.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier reports transient messages to the operator.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

func confirm(ctx context.Context, c Confirmer, message string) error {
	if c == nil || !c.Confirm(ctx, message) {
		return errs.ErrNotConfirmed
	}
	return nil
}

// ScriptedConfirmer replies from a fixed answer list and records the
// questions; once the answers run out it replies Default.
type ScriptedConfirmer struct {
	Answers   []bool
	Default   bool
	Questions []string
}

func (s *ScriptedConfirmer) Confirm(_ context.Context, message string) bool {
	s.Questions = append(s.Questions, message)
	if len(s.Answers) == 0 {
		return s.Default
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a
}

// Notification is one recorded Notify call.
type Notification struct {
	Level   Level
	Message string
}

// RecordingNotifier records notifications for assertions.
type RecordingNotifier struct {
	Notes []Notification
}

func (r *RecordingNotifier) Notify(_ context.Context, level Level, message string) {
	r.Notes = append(r.Notes, Notification{Level: level, Message: message})
}

// Last returns the most recent notification.
func (r *RecordingNotifier) Last() (Notification, bool) {
	if len(r.Notes) == 0 {
		return Notification{}, false
	}
	return r.Notes[len(r.Notes)-1], true
}
