package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownDragKind is returned for a drag reference that is neither a
// column nor a task.
var ErrUnknownDragKind = errors.New("unknown drag kind")

// DragKind is the wire discriminator of a DragRef.
type DragKind string

const (
	DragKindColumn DragKind = "column"
	DragKindTask   DragKind = "task"
)

// DragRef identifies the entity a gesture is about: either a ColumnRef or a
// TaskRef. The interface is sealed; switch on the concrete type.
type DragRef interface {
	EntityID() string
	Kind() DragKind
	isDragRef()
}

// ColumnRef refers to a column being dragged or hovered.
type ColumnRef struct{ ID string }

// TaskRef refers to a task being dragged or hovered.
type TaskRef struct{ ID string }

func (r ColumnRef) EntityID() string { return r.ID }
func (r ColumnRef) Kind() DragKind   { return DragKindColumn }
func (ColumnRef) isDragRef()         {}

func (r TaskRef) EntityID() string { return r.ID }
func (r TaskRef) Kind() DragKind   { return DragKindTask }
func (TaskRef) isDragRef()         {}

// ColumnDrag builds a reference to a column.
func ColumnDrag(id string) DragRef { return ColumnRef{ID: id} }

// TaskDrag builds a reference to a task.
func TaskDrag(id string) DragRef { return TaskRef{ID: id} }

// SameRef reports whether a and b refer to the same entity.
func SameRef(a, b DragRef) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Kind() == b.Kind() && a.EntityID() == b.EntityID()
}

// DragRefPayload is the JSON form of a DragRef.
type DragRefPayload struct {
	Kind DragKind `json:"kind"`
	ID   string   `json:"id"`
}

// Ref converts the payload into a DragRef. A nil payload yields a nil ref.
func (p *DragRefPayload) Ref() (DragRef, error) {
	if p == nil {
		return nil, nil
	}
	if p.ID == "" {
		return nil, fmt.Errorf("drag ref: id is required")
	}
	switch p.Kind {
	case DragKindColumn:
		return ColumnRef{ID: p.ID}, nil
	case DragKindTask:
		return TaskRef{ID: p.ID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDragKind, p.Kind)
	}
}

// PayloadOf converts a DragRef into its JSON form. A nil ref yields nil.
func PayloadOf(ref DragRef) *DragRefPayload {
	if ref == nil {
		return nil
	}
	return &DragRefPayload{Kind: ref.Kind(), ID: ref.EntityID()}
}

func (r ColumnRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(DragRefPayload{Kind: DragKindColumn, ID: r.ID})
}

func (r TaskRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(DragRefPayload{Kind: DragKindTask, ID: r.ID})
}
