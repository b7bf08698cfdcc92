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
	"log/slog"
	"os"

	"github.com/eosfusex/cachecore/cfg"
)

var (
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

// Init (re)configures the default logger from a LoggingConfig, pointing it
// at w, or at os.Stderr when w is nil.
func Init(c cfg.LoggingConfig, w *os.File) {
	defaultLoggerFactory.format = c.Format
	var out = os.Stderr
	if w != nil {
		out = w
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(out, programLevel, ""))
	SetLoggingLevel(c.Severity, programLevel)
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}
func Debugf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelDebug, fmt.Sprintf(format, args...))
}
func Infof(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelInfo, fmt.Sprintf(format, args...))
}
func Warnf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelWarn, fmt.Sprintf(format, args...))
}
func Errorf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelError, fmt.Sprintf(format, args...))
}

// With returns a logger scoped with the given key/value attrs, for
// call sites that want structured fields rather than an interpolated
// message (e.g. component-scoped loggers in the proxy and journal).
func With(args ...any) *slog.Logger { return defaultLogger.With(args...) }
