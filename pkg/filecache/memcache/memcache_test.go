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

package memcache_test

import (
	"testing"

	"github.com/eosfusex/cachecore/pkg/filecache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPwriteThenPreadRoundTrips(t *testing.T) {
	c := memcache.New()
	n, err := c.Pwrite([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestPwriteBeyondEndZeroFillsGap(t *testing.T) {
	c := memcache.New()
	_, err := c.Pwrite([]byte("x"), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 11, c.Size())

	buf := make([]byte, 10)
	n, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	for _, b := range buf {
		assert.Zero(t, b)
	}
}

func TestPreadPastEndReturnsZeroBytesNoError(t *testing.T) {
	c := memcache.New()
	_, _ = c.Pwrite([]byte("abc"), 0)

	buf := make([]byte, 10)
	n, err := c.Pread(buf, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTruncateShrinksAndExtends(t *testing.T) {
	c := memcache.New()
	_, _ = c.Pwrite([]byte("abcdef"), 0)

	require.NoError(t, c.Truncate(3))
	assert.EqualValues(t, 3, c.Size())

	require.NoError(t, c.Truncate(6))
	assert.EqualValues(t, 6, c.Size())

	buf := make([]byte, 6)
	_, _ = c.Pread(buf, 0)
	assert.Equal(t, "abc\x00\x00\x00", string(buf))
}

func TestXattrSetGetRemoveList(t *testing.T) {
	c := memcache.New()
	c.SetXattr("user.a", "1")
	c.SetXattr("user.b", "2")

	v, ok := c.GetXattr("user.a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	all := c.ListXattr()
	assert.Len(t, all, 2)

	c.RemoveXattr("user.a")
	_, ok = c.GetXattr("user.a")
	assert.False(t, ok)
}

func TestAttachDetachAreNoOps(t *testing.T) {
	c := memcache.New()
	assert.NoError(t, c.Attach())
	assert.NoError(t, c.Detach())
}
