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

// Package logger is the structured, leveled logger used by every component
// in the caching core. It wraps log/slog with the five severities the
// caching core's operators expect (TRACE, DEBUG, INFO, WARNING, ERROR) plus
// an OFF level that silences everything, and a custom handler that renders
// either a one-line text record or a JSON record with a structured
// timestamp.
package logger

import "log/slog"

// slog only defines Debug/Info/Warn/Error; TRACE sits below Debug and OFF
// sits above Error so it never fires.
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = slog.LevelError + 4
)

// severityName renders the level the way the text/JSON handlers expect:
// TRACE, DEBUG, INFO, WARNING, ERROR.
func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// ParseLevel maps the cfg logging-level constants onto a slog.Level.
func ParseLevel(s string) slog.Level {
	switch s {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

// SetLoggingLevel updates programLevel in place to match the named level.
func SetLoggingLevel(level string, programLevel *slog.LevelVar) {
	programLevel.Set(ParseLevel(level))
}
