package audit

import (
	"context"
	"errors"
	"log/slog"
)

// Tee fans writes out to every sink and unions their replied sets.
type Tee struct {
	sinks []Sink
}

func NewTee(sinks ...Sink) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

func (t *Tee) EnsureSchema(ctx context.Context, dest Destination) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.EnsureSchema(ctx, dest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Append writes to every sink even when an earlier one fails.
func (t *Tee) Append(ctx context.Context, dest Destination, record Record) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Append(ctx, dest, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RepliedCommentIDs fails only when no sink could be read.
func (t *Tee) RepliedCommentIDs(ctx context.Context, dest Destination) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	var errs []error

	for _, s := range t.sinks {
		got, err := s.RepliedCommentIDs(ctx, dest)
		if err != nil {
			slog.Warn("Failed to read replied comments", "sheet", dest.SheetName, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, id := range got {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	if len(errs) > 0 && len(errs) == len(t.sinks) {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}
