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

// Package remotefile is the narrow interface FileProxy uses to talk to
// the remote storage service, independent of transport.
package remotefile

import "context"

// StatusCode names the outcome of a remote file operation. A handful of
// these are classified as transient and drive the proxy's retry policy.
type StatusCode string

const (
	StatusOK                 StatusCode = "ok"
	StatusConnectionError    StatusCode = "connection-error"
	StatusSocketTimeout      StatusCode = "socket-timeout"
	StatusOperationExpired   StatusCode = "operation-expired"
	StatusSocketDisconnected StatusCode = "socket-disconnected"
	StatusNoServer           StatusCode = "no-server"
	StatusFSError            StatusCode = "fs-error"
	StatusIOError            StatusCode = "io-error"
	StatusFatal              StatusCode = "fatal"
)

// transientCodes is the set classified "should retry" per the open/reopen
// error policy.
var transientCodes = map[StatusCode]bool{
	StatusConnectionError:    true,
	StatusSocketTimeout:      true,
	StatusOperationExpired:   true,
	StatusSocketDisconnected: true,
	StatusNoServer:           true,
	StatusFSError:            true,
	StatusIOError:            true,
}

// Status is the typed result of a remote operation.
type Status struct {
	Code    StatusCode
	Errno   int
	Message string
}

// OK reports whether the operation succeeded.
func (s Status) OK() bool { return s.Code == StatusOK }

// Transient reports whether the failure is one the proxy should retry
// rather than treat as fatal.
func (s Status) Transient() bool { return transientCodes[s.Code] }

// Handle identifies one open remote file, opaque to the caller.
type Handle string

// Client is the narrow surface FileProxy needs from the remote file
// service. Every method blocks for the duration of the remote call; the
// proxy is responsible for running them off its own caller's goroutine
// when asynchronous behavior is required.
type Client interface {
	Open(ctx context.Context, url string, flags int, mode uint32) (Handle, Status, error)
	Read(ctx context.Context, h Handle, buf []byte, offset int64) (int, Status, error)
	Write(ctx context.Context, h Handle, buf []byte, offset int64) (int, Status, error)
	Truncate(ctx context.Context, h Handle, size int64) (Status, error)
	Close(ctx context.Context, h Handle) (Status, error)
}
