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
	"time"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/model"
)

// CloseAsync waits for any in-flight writes to drain and then submits the
// remote close. It is a no-op if the proxy is Closed or its open failed;
// a proxy still in Opening moves to Closing like an open one.
func (p *FileProxy) CloseAsync(ctx context.Context) {
	p.mu.Lock()
	if p.state == model.Closed || p.state == model.Failed {
		p.mu.Unlock()
		return
	}
	p.setStateLocked(model.Closing, "close_async")
	p.mu.Unlock()

	go p.doClose(ctx)
}

func (p *FileProxy) doClose(ctx context.Context) {
	if err := p.WaitWrite(ctx); err != nil {
		p.mu.Lock()
		p.setStateLocked(model.CloseFailed, "close_async: write drain failed: "+err.Error())
		p.mu.Unlock()
		return
	}

	status, err := p.client.Close(ctx, p.handle)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil || !status.OK() {
		p.setStateLocked(model.CloseFailed, "remote close failed")
		return
	}
	p.setStateLocked(model.Closed, "remote close ok")
}

// Close performs a synchronous close with the given deadline, satisfying
// the small io-handle Proxy interface. It is safe to call on a proxy that
// never finished opening.
func (p *FileProxy) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state == model.Closed {
		return nil
	}

	p.CloseAsync(ctx)

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
	for p.state != model.Closed && p.state != model.CloseFailed && p.state != model.Failed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.cond.Wait()
	}
	if p.state == model.CloseFailed {
		return apperror.New(apperror.TransientRemote, "proxy.Close", nil)
	}
	return nil
}
