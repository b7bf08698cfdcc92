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

// Package proxy implements FileProxy: a single asynchronous, coalescing
// connection to one open remote file, sitting between the local caches
// and the remote backend.
package proxy

import (
	"fmt"
	"time"

	"github.com/eosfusex/cachecore/pkg/model"
)

const protocolLogCapacity = 64

// transition records one state-machine edge for the protocol log.
type transition struct {
	at   time.Time
	line string
}

func (p *FileProxy) setStateLocked(to model.ProxyState, note string) {
	from := p.state
	p.state = to
	line := fmt.Sprintf("%s -> %s: %s", from, to, note)
	p.protocolLog = append(p.protocolLog, transition{at: timeNow(), line: line})
	if len(p.protocolLog) > protocolLogCapacity {
		p.protocolLog = p.protocolLog[len(p.protocolLog)-protocolLogCapacity:]
	}
	p.cond.Broadcast()
}

// timeNow is a seam tests can't easily override without a clock
// injection point; kept as a thin wrapper for readability at call sites.
func timeNow() time.Time { return time.Now() }

// State returns the current state-machine state.
func (p *FileProxy) State() model.ProxyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ProtocolLog returns a snapshot of the recent transition log, oldest
// first.
func (p *FileProxy) ProtocolLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.protocolLog))
	for i, t := range p.protocolLog {
		out[i] = t.line
	}
	return out
}
