package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"slices"
)

const idBytes = 4

type scope struct {
	id    string
	attrs []slog.Attr
}

type scopeKey struct{}

// NewID returns a short random hex id, 8 characters long.
func NewID() string {
	var b [idBytes]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithID tags ctx with a correlation id. Attributes added by WithAttrs are kept.
func WithID(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.id = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithAttrs adds attributes that every record logged with ctx carries, such as the
// instance id of a WebSocket connection.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	s := scopeFrom(ctx)
	s.attrs = append(slices.Clip(s.attrs), attrs...)
	return context.WithValue(ctx, scopeKey{}, s)
}

func ID(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).id
	return id, id != ""
}

// Handler injects "correlation_id" and any context attributes into every record.
type Handler struct {
	slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{Handler: inner}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	s := scopeFrom(ctx)
	if s.id != "" {
		r.AddAttrs(slog.String("correlation_id", s.id))
	}
	r.AddAttrs(s.attrs...)
	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}
