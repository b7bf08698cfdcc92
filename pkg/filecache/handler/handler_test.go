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

package handler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eosfusex/cachecore/cfg"
	"github.com/eosfusex/cachecore/pkg/filecache/handler"
	"github.com/eosfusex/cachecore/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memConfig(t *testing.T) cfg.Config {
	t.Helper()
	c := cfg.DefaultConfig()
	c.Cache.Type = cfg.CacheTypeMemory
	c.Journal.Location = ""
	return c
}

func TestGetConstructsAndReusesHandle(t *testing.T) {
	h, err := handler.New(memConfig(t))
	require.NoError(t, err)
	t.Cleanup(h.Shutdown)

	h1, err := h.Get(model.FileIdentifier(1))
	require.NoError(t, err)
	h2, err := h.Get(model.FileIdentifier(1))
	require.NoError(t, err)
	assert.Same(t, h1, h2)
}

func TestRmRemovesHandleAfterLastReference(t *testing.T) {
	h, err := handler.New(memConfig(t))
	require.NoError(t, err)
	t.Cleanup(h.Shutdown)

	_, err = h.Get(model.FileIdentifier(5))
	require.NoError(t, err)
	_, err = h.Get(model.FileIdentifier(5))
	require.NoError(t, err)

	require.NoError(t, h.Rm(model.FileIdentifier(5)))
	first, err := h.Get(model.FileIdentifier(5))
	require.NoError(t, err)

	require.NoError(t, h.Rm(model.FileIdentifier(5)))
	require.NoError(t, h.Rm(model.FileIdentifier(5)))

	second, err := h.Get(model.FileIdentifier(5))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestCleanOnStartupWipesExistingCacheDir(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale-file")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	c := cfg.DefaultConfig()
	c.Cache.Type = cfg.CacheTypeDisk
	c.Cache.Location = dir
	c.Cache.CleanOnStartup = true
	c.Journal.Location = ""

	h, err := handler.New(c)
	require.NoError(t, err)
	t.Cleanup(h.Shutdown)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestDiskBackedHandleUsesDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := cfg.DefaultConfig()
	c.Cache.Type = cfg.CacheTypeDisk
	c.Cache.Location = dir
	c.Journal.Location = ""

	h, err := handler.New(c)
	require.NoError(t, err)
	t.Cleanup(h.Shutdown)

	handle, err := h.Get(model.FileIdentifier(9))
	require.NoError(t, err)
	require.NotNil(t, handle.Data())
}
