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

package proxy

import (
	"context"
	"fmt"

	"github.com/eosfusex/cachecore/pkg/model"
	"github.com/eosfusex/cachecore/pkg/remotefile"
)

// OpenAsync submits the remote open and returns immediately; WaitOpen
// blocks until it completes.
func (p *FileProxy) OpenAsync(ctx context.Context) {
	p.mu.Lock()
	p.setStateLocked(model.Opening, "open_async")
	p.mu.Unlock()

	go p.doOpen(ctx)
}

func (p *FileProxy) doOpen(ctx context.Context) {
	if p.opts.Faults.OpenSubmissionShouldFail() {
		p.finishOpen("", remotefile.Status{Code: remotefile.StatusFatal, Message: "injected open submission fault"}, fmt.Errorf("fault: open submission"))
		return
	}

	h, status, err := p.client.Open(ctx, p.opts.URL, p.opts.Flags, p.opts.Mode)

	if p.opts.Faults.OpenResponseShouldFail() {
		err = fmt.Errorf("fault: open response")
		status = remotefile.Status{Code: remotefile.StatusConnectionError, Message: "injected open response fault"}
	}

	p.finishOpen(h, status, err)
}

func (p *FileProxy) finishOpen(h remotefile.Handle, status remotefile.Status, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handle = h
	p.openStatus = status
	p.openErr = err

	if err != nil || !status.OK() {
		p.setStateLocked(model.Failed, fmt.Sprintf("open failed: %v", err))
		return
	}
	p.setStateLocked(model.Open, "open ok")
}

// WaitOpen blocks until the proxy leaves the Opening state, returning the
// remote status (and error, if the open failed outright).
func (p *FileProxy) WaitOpen(ctx context.Context) (remotefile.Status, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-stop:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.state == model.Opening {
		if ctx.Err() != nil {
			return remotefile.Status{}, ctx.Err()
		}
		p.cond.Wait()
	}
	if ctx.Err() != nil && p.state == model.Opening {
		return remotefile.Status{}, ctx.Err()
	}
	return p.openStatus, p.openErr
}

// ReopenAsync re-issues the open for error recovery on a freshly
// constructed FileProxy, inheriting this proxy's write queue and
// in-flight bookkeeping. The transient error set from the open/reopen
// policy is classified via remotefile.Status.Transient; all other open
// failures are fatal and should not be retried.
func (p *FileProxy) ReopenAsync(ctx context.Context, next *FileProxy) {
	p.mu.Lock()
	next.mu.Lock()
	next.scheduled = append(next.scheduled, p.scheduled...)
	next.inflight = p.inflight
	next.mu.Unlock()
	p.mu.Unlock()

	next.OpenAsync(ctx)
}

// ShouldRetryOpen reports whether the last open failure is in the
// transient set and therefore worth a ReopenAsync.
func (p *FileProxy) ShouldRetryOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr == nil && p.openStatus.OK() {
		return false
	}
	return p.openStatus.Transient()
}
