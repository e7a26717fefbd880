// Package logging provides the structured logger shared by mogwaid and
// mogwai-tariff: a slog.Handler that renders human-readable, colorized
// lines on a terminal and degrades to plain text when color isn't
// appropriate (piped output, NO_COLOR set, not a TTY).
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var recordBufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Options configures a PrettyHandler. Zero value is not directly usable;
// start from DefaultOptions.
type Options struct {
	Level             slog.Leveler
	AddSource         bool
	UseColor          bool
	FullSourcePath    bool
	TimeFormat        string
	LevelWidth        int
	DisableTimestamp  bool
	FieldSeparator    string
	MaxFieldLength    int
	CompactJSON       bool
	DisableHTMLEscape bool
}

// DefaultOptions returns sensible defaults, auto-detecting color support
// from the environment the way the color package itself does (NO_COLOR,
// non-terminal stdout).
func DefaultOptions() Options {
	return Options{
		Level:             slog.LevelInfo,
		AddSource:         false,
		UseColor:          !color.NoColor,
		FullSourcePath:    false,
		TimeFormat:        time.RFC3339,
		LevelWidth:        7,
		DisableTimestamp:  false,
		FieldSeparator:    " | ",
		MaxFieldLength:    0,
		CompactJSON:       false,
		DisableHTMLEscape: true,
	}
}

// PrettyHandler is a slog.Handler producing one colorized line per record,
// with structured fields rendered as a trailing JSON object.
type PrettyHandler struct {
	opts   Options
	writer io.Writer
	mu     *sync.Mutex
	groups []string
	attrs  []slog.Attr

	paint map[slog.Level]func(...any) string
	fg    struct {
		time, message, source, fields, fallback func(...any) string
	}
}

// NewPrettyHandler builds a handler writing to w. A nil opts falls back to
// DefaultOptions.
func NewPrettyHandler(w io.Writer, opts *Options) *PrettyHandler {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.TimeFormat == "" {
		o.TimeFormat = time.RFC3339
	}
	if o.LevelWidth < 5 {
		o.LevelWidth = 7
	}
	if o.FieldSeparator == "" {
		o.FieldSeparator = " | "
	}

	h := &PrettyHandler{opts: o, writer: w, mu: &sync.Mutex{}}
	h.paintInit()
	return h
}

func (h *PrettyHandler) paintInit() {
	plain := func(a ...any) string { return fmt.Sprint(a...) }

	if !h.opts.UseColor {
		h.fg.time, h.fg.message, h.fg.source, h.fg.fields, h.fg.fallback = plain, plain, plain, plain, plain
		h.paint = map[slog.Level]func(...any) string{
			slog.LevelDebug: plain, slog.LevelInfo: plain, slog.LevelWarn: plain, slog.LevelError: plain,
		}
		return
	}

	h.fg.time = color.New(color.FgHiBlack).SprintFunc()
	h.fg.message = color.New(color.FgCyan).SprintFunc()
	h.fg.source = color.New(color.FgHiBlack).SprintFunc()
	h.fg.fields = color.New(color.FgWhite).SprintFunc()
	h.fg.fallback = color.New(color.FgRed, color.Bold).SprintFunc()

	h.paint = map[slog.Level]func(...any) string{
		slog.LevelDebug: color.New(color.FgMagenta).SprintFunc(),
		slog.LevelInfo:  color.New(color.FgBlue).SprintFunc(),
		slog.LevelWarn:  color.New(color.FgYellow).SprintFunc(),
		slog.LevelError: color.New(color.FgRed).SprintFunc(),
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := recordBufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		recordBufPool.Put(buf)
	}()

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opts.DisableTimestamp {
		buf.WriteString(h.fg.time(r.Time.Format(h.opts.TimeFormat)))
		buf.WriteString(h.opts.FieldSeparator)
	}

	buf.WriteString(h.formatLevel(r.Level))
	buf.WriteString(h.opts.FieldSeparator)

	if h.opts.AddSource {
		if src := h.sourceOf(r.PC); src != "" {
			buf.WriteString(h.fg.source(src))
			buf.WriteString(h.opts.FieldSeparator)
		}
	}

	buf.WriteString(h.fg.message(r.Message))

	if attrs := h.collectAttrs(r); len(attrs) > 0 {
		buf.WriteString(h.opts.FieldSeparator)
		if err := h.writeAttrs(buf, attrs); err != nil {
			fmt.Fprintf(buf, "(could not encode fields: %v)", err)
		}
	}

	buf.WriteByte('\n')
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.clone(h.groups, append(append([]slog.Attr(nil), h.attrs...), attrs...))
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.clone(append(append([]string(nil), h.groups...), name), h.attrs)
}

func (h *PrettyHandler) clone(groups []string, attrs []slog.Attr) *PrettyHandler {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := &PrettyHandler{opts: h.opts, writer: h.writer, mu: &sync.Mutex{}, groups: groups, attrs: attrs}
	next.paintInit()
	return next
}

func (h *PrettyHandler) formatLevel(level slog.Level) string {
	text := strings.ToUpper(level.String())
	if h.opts.LevelWidth > 0 {
		text = fmt.Sprintf("%-*s", h.opts.LevelWidth, text)
	}
	if paint, ok := h.paint[level]; ok {
		return paint(text)
	}
	if level > slog.LevelError {
		return h.fg.fallback(text)
	}
	return text
}

func (h *PrettyHandler) sourceOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.Function == "" {
		return ""
	}

	file := frame.File
	if !h.opts.FullSourcePath {
		file = filepath.Base(file)
	}
	return fmt.Sprintf("%s:%d", file, frame.Line)
}

func (h *PrettyHandler) collectAttrs(r slog.Record) map[string]any {
	out := make(map[string]any)

	cursor := out
	for _, g := range h.groups {
		nested := make(map[string]any)
		cursor[g] = nested
		cursor = nested
	}

	for _, a := range h.attrs {
		h.putAttr(cursor, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.putAttr(cursor, a)
		return true
	})

	pruneEmpty(out)
	return out
}

func (h *PrettyHandler) putAttr(dst map[string]any, a slog.Attr) {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		group := make(map[string]any)
		for _, ga := range v.Group() {
			h.putAttr(group, ga)
		}
		if len(group) > 0 {
			dst[a.Key] = group
		}
		return
	}

	switch v.Kind() {
	case slog.KindTime:
		dst[a.Key] = v.Time().Format(h.opts.TimeFormat)
	case slog.KindDuration:
		dst[a.Key] = v.Duration().String()
	default:
		val := v.Any()
		if s, ok := val.(string); ok && h.opts.MaxFieldLength > 0 && len(s) > h.opts.MaxFieldLength {
			val = s[:h.opts.MaxFieldLength] + "..."
		}
		dst[a.Key] = val
	}
}

func pruneEmpty(attrs map[string]any) {
	for k, v := range attrs {
		if nested, ok := v.(map[string]any); ok {
			pruneEmpty(nested)
			if len(nested) == 0 {
				delete(attrs, k)
			}
		}
	}
}

func (h *PrettyHandler) writeAttrs(buf *bytes.Buffer, attrs map[string]any) error {
	var jsonBuf bytes.Buffer
	enc := json.NewEncoder(&jsonBuf)
	enc.SetEscapeHTML(!h.opts.DisableHTMLEscape)
	if h.opts.CompactJSON {
		enc.SetIndent("", "")
	} else {
		enc.SetIndent("", "  ")
	}

	if err := enc.Encode(attrs); err != nil {
		return err
	}

	buf.WriteString(h.fg.fields(string(bytes.TrimRight(jsonBuf.Bytes(), "\n"))))
	return nil
}

// New builds the logger mogwaid and mogwai-tariff attach a "component" tag
// to. verbose raises the level to Debug and turns on source locations.
func New(w io.Writer, component string, verbose bool) *slog.Logger {
	opts := DefaultOptions()
	if verbose {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	return slog.New(NewPrettyHandler(w, &opts)).With("component", component)
}

// NewDefault builds the standard stderr logger for command entrypoints.
func NewDefault(component string, verbose bool) *slog.Logger {
	return New(os.Stderr, component, verbose)
}
