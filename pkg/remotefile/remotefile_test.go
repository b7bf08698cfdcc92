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

package remotefile_test

import (
	"testing"

	"github.com/eosfusex/cachecore/pkg/remotefile"
	"github.com/stretchr/testify/assert"
)

func TestTransientCodesAreClassifiedCorrectly(t *testing.T) {
	transient := []remotefile.StatusCode{
		remotefile.StatusConnectionError,
		remotefile.StatusSocketTimeout,
		remotefile.StatusOperationExpired,
		remotefile.StatusSocketDisconnected,
		remotefile.StatusNoServer,
		remotefile.StatusFSError,
		remotefile.StatusIOError,
	}
	for _, code := range transient {
		s := remotefile.Status{Code: code}
		assert.True(t, s.Transient(), "expected %s to be transient", code)
	}

	assert.False(t, remotefile.Status{Code: remotefile.StatusFatal}.Transient())
	assert.False(t, remotefile.Status{Code: remotefile.StatusOK}.Transient())
}

func TestStatusOK(t *testing.T) {
	assert.True(t, remotefile.Status{Code: remotefile.StatusOK}.OK())
	assert.False(t, remotefile.Status{Code: remotefile.StatusIOError}.OK())
}
