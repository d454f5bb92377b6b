package document

import (
	"encoding/json"
	"fmt"
)

// DiffResult carries the serialized deltas produced for a submission.
// Changed is false when the submitted document is identical to the actual
// one; callers must not create review work for a no-op edit.
type DiffResult struct {
	Additions json.RawMessage
	Deletions json.RawMessage
	Changed   bool
}

// Handler is the type-erased face of one document type's schema, used by the
// service and store layers, which deal in raw jsonb bodies. Implementations
// are pure and safe for concurrent use.
type Handler interface {
	Type() string
	Diff(submitted, actual json.RawMessage) (DiffResult, error)
	Merge(actual, additions, deletions json.RawMessage, mc Context) (json.RawMessage, error)
	// ModeratorGroup names the moderator group responsible for reviewing a
	// request carrying the given deltas.
	ModeratorGroup(additions, deletions json.RawMessage) (string, error)
}

// GroupFunc selects the moderator group for a typed pair of deltas.
type GroupFunc[T any] func(additions, deletions *T) string

type typedHandler[T any] struct {
	schema *Schema[T]
	group  GroupFunc[T]
}

// NewHandler wraps a schema into a Handler, deserializing at the boundary.
func NewHandler[T any](schema *Schema[T], group GroupFunc[T]) Handler {
	return &typedHandler[T]{schema: schema, group: group}
}

func (h *typedHandler[T]) Type() string {
	return h.schema.Type
}

func (h *typedHandler[T]) Diff(submitted, actual json.RawMessage) (DiffResult, error) {
	sub, err := h.decode(submitted)
	if err != nil {
		return DiffResult{}, fmt.Errorf("decode submitted %s: %w", h.schema.Type, err)
	}
	act, err := h.decode(actual)
	if err != nil {
		return DiffResult{}, fmt.Errorf("decode actual %s: %w", h.schema.Type, err)
	}
	additions, deletions, changed := Diff(h.schema, sub, act)
	if !changed {
		return DiffResult{Changed: false}, nil
	}
	addRaw, err := json.Marshal(additions)
	if err != nil {
		return DiffResult{}, fmt.Errorf("encode additions: %w", err)
	}
	delRaw, err := json.Marshal(deletions)
	if err != nil {
		return DiffResult{}, fmt.Errorf("encode deletions: %w", err)
	}
	return DiffResult{Additions: addRaw, Deletions: delRaw, Changed: true}, nil
}

func (h *typedHandler[T]) Merge(actual, additions, deletions json.RawMessage, mc Context) (json.RawMessage, error) {
	act, err := h.decode(actual)
	if err != nil {
		return nil, fmt.Errorf("decode actual %s: %w", h.schema.Type, err)
	}
	add, err := h.decode(additions)
	if err != nil {
		return nil, fmt.Errorf("decode additions: %w", err)
	}
	del, err := h.decode(deletions)
	if err != nil {
		return nil, fmt.Errorf("decode deletions: %w", err)
	}
	merged := Merge(h.schema, act, add, del, mc)
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged %s: %w", h.schema.Type, err)
	}
	return out, nil
}

func (h *typedHandler[T]) ModeratorGroup(additions, deletions json.RawMessage) (string, error) {
	add, err := h.decode(additions)
	if err != nil {
		return "", fmt.Errorf("decode additions: %w", err)
	}
	del, err := h.decode(deletions)
	if err != nil {
		return "", fmt.Errorf("decode deletions: %w", err)
	}
	return h.group(add, del), nil
}

func (h *typedHandler[T]) decode(raw json.RawMessage) (*T, error) {
	doc := new(T)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Registry maps a document-type tag to its Handler. It is built once at
// startup; per-type dispatch happens here rather than in switch statements
// at call sites.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	byType := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	return &Registry{handlers: byType}
}

func (r *Registry) Handler(docType string) (Handler, bool) {
	h, ok := r.handlers[docType]
	return h, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
