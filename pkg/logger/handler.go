// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// loggerFactory builds the process-wide slog.Handler and remembers its
// format so tests can flip between text and json without reconstructing
// everything.
type loggerFactory struct {
	format string
}

var defaultLoggerFactory = &loggerFactory{format: "text"}

// createJsonOrTextHandler returns a handler writing to w at the severity
// named by levelVar, prefixing every text-format message line with prefix.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	return &severityHandler{
		w:      w,
		level:  levelVar,
		json:   f.format == "json",
		prefix: prefix,
	}
}

// severityHandler is a minimal slog.Handler: one line per record, no
// grouping, no handler-level attrs beyond what's attached via WithAttrs.
// It exists so severity renders as TRACE/DEBUG/.../ERROR instead of slog's
// default DEBUG-4 style labels, matching this package's five-level scheme.
type severityHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	json   bool
	prefix string
	attrs  []slog.Attr
}

func (h *severityHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *severityHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := h.prefix + r.Message
	if h.json {
		return h.writeJSON(r, msg)
	}
	return h.writeText(r, msg)
}

func (h *severityHandler) writeText(r slog.Record, msg string) error {
	line := fmt.Sprintf("time=%q severity=%s message=%q", r.Time.Format(time.RFC3339Nano), severityName(r.Level), msg)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *severityHandler) writeJSON(r slog.Record, msg string) error {
	line := fmt.Sprintf(`{"timestamp":{"seconds":%d,"nanos":%d},"severity":%q,"message":%q`,
		r.Time.Unix(), r.Time.Nanosecond(), severityName(r.Level), msg)
	for _, a := range h.attrs {
		line += fmt.Sprintf(`,%q:%q`, a.Key, fmt.Sprint(a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(`,%q:%q`, a.Key, fmt.Sprint(a.Value))
		return true
	})
	line += "}"
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *severityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *severityHandler) WithGroup(_ string) slog.Handler {
	return h
}
