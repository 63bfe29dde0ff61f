// Package mirror replicates local state changes to the secondary store in the background.
// Callers submit tasks and move on; delivery, retries and failures stay inside the queue.
package mirror

import (
	"context"
	"errors"
	"fmt"

	"docvault/internal/schema"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpTrash  Op = "trash"
	OpDelete Op = "delete"
)

var ErrUnknownOp = errors.New("unknown mirror op")

// Task is one mirrored write. Fields are snake_case and merged into the stored record.
type Task struct {
	Op     Op            `json:"op"`
	ID     string        `json:"id"`
	Fields schema.Record `json:"fields,omitempty"`
}

// Store is the target of mirrored writes.
type Store interface {
	MirrorCreate(ctx context.Context, id string, fields schema.Record) error
	MirrorUpdate(ctx context.Context, id string, fields schema.Record) error
	MirrorTrash(ctx context.Context, id string, fields schema.Record) error
	MirrorDelete(ctx context.Context, id string) error
}

// Apply performs t against s.
func Apply(ctx context.Context, s Store, t Task) error {
	if t.ID == "" {
		return errors.New("mirror task without id")
	}
	switch t.Op {
	case OpCreate:
		return s.MirrorCreate(ctx, t.ID, t.Fields)
	case OpUpdate:
		return s.MirrorUpdate(ctx, t.ID, t.Fields)
	case OpTrash:
		return s.MirrorTrash(ctx, t.ID, t.Fields)
	case OpDelete:
		return s.MirrorDelete(ctx, t.ID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, t.Op)
	}
}

// Queue accepts tasks without blocking. Submit reports false when the task was dropped because
// the queue is full or closed.
type Queue interface {
	Submit(t Task) bool
	Close(ctx context.Context) error
}

// Discard accepts every task and does nothing with it.
type Discard struct{}

func (Discard) Submit(Task) bool            { return true }
func (Discard) Close(context.Context) error { return nil }
