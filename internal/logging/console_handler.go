package logging

import (
	"context"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02 15:04:05 INFO  [1a2b3c4d audio/talk.mp3] workflow/Transcribe: step completed status=TRANSCRIPTION_COMPLETE
//
// Job id, blob ref, component and stage move into the line prefix; every
// other attribute follows the message as key=value.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []field
	groups    []string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	var prefix linePrefix
	rest := fields[:0]
	for _, f := range fields {
		if !prefix.take(f) {
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(160)
	b.WriteString(ts.In(time.Local).Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	prefix.write(&b)

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil {
			b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, f := range rest {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(renderValue(f.value, true))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, attr := range attrs {
		clone.attrs = appendField(clone.attrs, h.groups, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

// appendField flattens attr, joining group names into dotted keys.
func appendField(dst []field, groups []string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			groups = append(slices.Clone(groups), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, groups, member)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, field{key: key, value: attr.Value})
}

// linePrefix collects the attributes shown ahead of the message. The first
// occurrence of each wins.
type linePrefix struct {
	jobID, fileRef, component, stage string
}

func (p *linePrefix) take(f field) bool {
	var slot *string
	switch f.key {
	case FieldJobID:
		slot = &p.jobID
	case FieldFileRef:
		slot = &p.fileRef
	case FieldComponent:
		slot = &p.component
	case FieldStage:
		slot = &p.stage
	default:
		return false
	}
	if *slot == "" {
		*slot = renderValue(f.value, false)
	}
	return true
}

func (p *linePrefix) write(b *strings.Builder) {
	var scope []string
	if p.jobID != "" {
		scope = append(scope, shortID(p.jobID))
	}
	if p.fileRef != "" {
		scope = append(scope, shortRef(p.fileRef))
	}
	if len(scope) > 0 {
		b.WriteString("[" + strings.Join(scope, " ") + "] ")
	}
	switch {
	case p.component != "" && p.stage != "":
		b.WriteString(p.component + "/" + p.stage + ": ")
	case p.component != "":
		b.WriteString(p.component + ": ")
	case p.stage != "":
		b.WriteString(p.stage + ": ")
	}
}

// shortID trims uuids to their first block.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// shortRef keeps the last two path elements of slash refs and the first
// block of uuid refs.
func shortRef(ref string) string {
	if strings.Contains(ref, "/") {
		dir, file := path.Split(ref)
		if parent := path.Base(dir); parent != "." && parent != "/" {
			return parent + "/" + file
		}
		return file
	}
	return shortID(ref)
}
