package gelf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Handler adapts a Writer into a log/slog Handler, so structured
// records flow to Graylog with their attributes as GELF additional
// fields.
type Handler struct {
	w      Writer
	level  slog.Leveler
	clock  clockwork.Clock
	host   string
	attrs  []slog.Attr
	groups []string
}

// HandlerOptions configures a Handler.  The zero value sends
// LevelInfo and above with the local hostname and wall clock.
type HandlerOptions struct {
	// Level reports the minimum record level that will be sent.
	Level slog.Leveler

	// Host overrides the hostname reported in the GELF host field.
	Host string

	// Clock supplies timestamps for records that carry none.  Tests
	// inject a fake clock here to assert exact encoded output.
	Clock clockwork.Clock
}

func NewHandler(w Writer, opts *HandlerOptions) (*Handler, error) {
	h := &Handler{w: w}
	if opts != nil {
		h.level = opts.Level
		h.host = opts.Host
		h.clock = opts.Clock
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		h.host = hostname
	}
	return h, nil
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	extra := make(map[string]interface{}, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		addAttr(extra, nil, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		addAttr(extra, h.groups, a)
		return true
	})

	ts := rec.Time
	if ts.IsZero() {
		ts = h.clock.Now()
	}

	m := &Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    rec.Message,
		TimeUnix: float64(ts.UnixNano()) / float64(time.Second),
		Level:    syslogLevel(rec.Level),
		Extra:    extra,
	}
	return h.w.WriteMessage(m)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		// flatten into the current group path now, so extras built
		// here survive later WithGroup calls
		h2.attrs = append(h2.attrs, slog.Attr{
			Key:   strings.Join(append(append([]string{}, h.groups...), a.Key), "_"),
			Value: a.Value,
		})
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = make([]string, 0, len(h.groups)+1)
	h2.groups = append(h2.groups, h.groups...)
	h2.groups = append(h2.groups, name)
	return &h2
}

// addAttr flattens an attribute into the extra-field map.  Group
// attributes join their member keys with "_"; numeric values stay
// numbers, everything else becomes a string.
func addAttr(extra map[string]interface{}, groups []string, a slog.Attr) {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		sub := v.Group()
		if a.Key != "" {
			groups = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range sub {
			addAttr(extra, groups, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string{}, groups...), a.Key), "_")
	}

	switch v.Kind() {
	case slog.KindInt64:
		extra[key] = v.Int64()
	case slog.KindUint64:
		extra[key] = v.Uint64()
	case slog.KindFloat64:
		extra[key] = v.Float64()
	case slog.KindString:
		extra[key] = v.String()
	case slog.KindDuration:
		extra[key] = v.Duration().String()
	case slog.KindTime:
		extra[key] = v.Time().Format(time.RFC3339Nano)
	default:
		extra[key] = fmt.Sprint(v.Any())
	}
}

// syslogLevel maps slog levels onto the syslog 0..7 scale the same
// way typical logging frameworks do: errors and worse land on
// LOG_ERR, warnings on LOG_WARNING, info on LOG_INFO, anything below
// on LOG_DEBUG.
func syslogLevel(level slog.Level) int32 {
	switch {
	case level >= slog.LevelError+4:
		return LOG_CRIT
	case level >= slog.LevelError:
		return LOG_ERR
	case level >= slog.LevelWarn:
		return LOG_WARNING
	case level >= slog.LevelInfo:
		return LOG_INFO
	default:
		return LOG_DEBUG
	}
}
