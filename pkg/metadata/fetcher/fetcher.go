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

// Package fetcher is the stateless request builder and response decoder
// sitting between a MetadataProviderShard and the remote KV store.
package fetcher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/metadatastore"
	"github.com/eosfusex/cachecore/pkg/model"
)

const (
	fieldKeyPrefix      = "f:"
	containerKeyPrefix  = "c:"
	fileMapKeyPrefix    = "fm:"
	containerMapPrefix  = "cm:"
	fileNameIndexPrefix = "fn:"
	dirNameIndexPrefix  = "dn:"
)

// Fetcher builds requests against store and decodes its responses into
// typed metadata. It carries no state of its own; every method is safe
// to call concurrently and from any shard.
type Fetcher struct {
	store metadatastore.Store
}

// New wraps store.
func New(store metadatastore.Store) *Fetcher {
	return &Fetcher{store: store}
}

func fileKey(id model.FileIdentifier) string {
	return fieldKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func containerKey(id model.ContainerIdentifier) string {
	return containerKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func fileMapKey(id model.ContainerIdentifier) string {
	return fileMapKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func containerMapKey(id model.ContainerIdentifier) string {
	return containerMapPrefix + strconv.FormatUint(uint64(id), 10)
}

func fileNameIndexKey(parent model.ContainerIdentifier) string {
	return fileNameIndexPrefix + strconv.FormatUint(uint64(parent), 10)
}

func dirNameIndexKey(parent model.ContainerIdentifier) string {
	return dirNameIndexPrefix + strconv.FormatUint(uint64(parent), 10)
}

// GetFile fetches and decodes one file's metadata. FileIdentifier(0)
// short-circuits to not-found without touching the store.
func (f *Fetcher) GetFile(ctx context.Context, id model.FileIdentifier) (*model.FileMetadata, error) {
	if id.IsZero() {
		return nil, apperror.New(apperror.NotFound, "fetcher.GetFile", nil)
	}
	raw, ok, err := f.store.Get(ctx, fileKey(id))
	if err != nil {
		return nil, apperror.New(apperror.TransientRemote, "fetcher.GetFile", err)
	}
	if !ok {
		return nil, apperror.New(apperror.NotFound, "fetcher.GetFile", nil)
	}
	meta, err := model.DecodeFileMetadata([]byte(raw))
	if err != nil {
		return nil, apperror.New(apperror.ChecksumMismatch, "fetcher.GetFile", err)
	}
	return meta, nil
}

// GetContainer fetches and decodes one container's own record, without
// its file/container child maps; callers combine this with GetFileMap and
// GetContainerMap to build a complete ContainerMetadata the way
// MetadataProviderShard.RetrieveContainer does.
func (f *Fetcher) GetContainer(ctx context.Context, id model.ContainerIdentifier) (*model.ContainerMetadata, error) {
	if id.IsZero() {
		return nil, apperror.New(apperror.NotFound, "fetcher.GetContainer", nil)
	}
	raw, ok, err := f.store.Get(ctx, containerKey(id))
	if err != nil {
		return nil, apperror.New(apperror.TransientRemote, "fetcher.GetContainer", err)
	}
	if !ok {
		return nil, apperror.New(apperror.NotFound, "fetcher.GetContainer", nil)
	}
	meta, err := model.DecodeContainerMetadata([]byte(raw))
	if err != nil {
		return nil, apperror.New(apperror.ChecksumMismatch, "fetcher.GetContainer", err)
	}
	return meta, nil
}

// FileExists reports whether id names a live file, without decoding it.
func (f *Fetcher) FileExists(ctx context.Context, id model.FileIdentifier) (bool, error) {
	if id.IsZero() {
		return false, nil
	}
	_, ok, err := f.store.Get(ctx, fileKey(id))
	if err != nil {
		return false, apperror.New(apperror.TransientRemote, "fetcher.FileExists", err)
	}
	return ok, nil
}

// GetFileMap returns container's name→file-id children.
func (f *Fetcher) GetFileMap(ctx context.Context, id model.ContainerIdentifier) (map[string]model.FileIdentifier, error) {
	raw, err := f.store.Scan(ctx, fileMapKey(id))
	if err != nil {
		return nil, apperror.New(apperror.TransientRemote, "fetcher.GetFileMap", err)
	}
	out := make(map[string]model.FileIdentifier, len(raw))
	for name, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, apperror.New(apperror.ChecksumMismatch, "fetcher.GetFileMap", err)
		}
		out[name] = model.FileIdentifier(n)
	}
	return out, nil
}

// GetContainerMap returns container's name→container-id children.
func (f *Fetcher) GetContainerMap(ctx context.Context, id model.ContainerIdentifier) (map[string]model.ContainerIdentifier, error) {
	raw, err := f.store.Scan(ctx, containerMapKey(id))
	if err != nil {
		return nil, apperror.New(apperror.TransientRemote, "fetcher.GetContainerMap", err)
	}
	out := make(map[string]model.ContainerIdentifier, len(raw))
	for name, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, apperror.New(apperror.ChecksumMismatch, "fetcher.GetContainerMap", err)
		}
		out[name] = model.ContainerIdentifier(n)
	}
	return out, nil
}

// GetFileIDByName resolves one child file name to an id without fetching
// the whole directory map.
func (f *Fetcher) GetFileIDByName(ctx context.Context, parent model.ContainerIdentifier, name string) (model.FileIdentifier, error) {
	v, ok, err := f.store.HGet(ctx, fileNameIndexKey(parent), name)
	if err != nil {
		return 0, apperror.New(apperror.TransientRemote, "fetcher.GetFileIDByName", err)
	}
	if !ok {
		return 0, apperror.New(apperror.NotFound, "fetcher.GetFileIDByName", nil)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.ChecksumMismatch, "fetcher.GetFileIDByName", err)
	}
	return model.FileIdentifier(n), nil
}

// GetContainerIDByName resolves one child container name to an id.
func (f *Fetcher) GetContainerIDByName(ctx context.Context, parent model.ContainerIdentifier, name string) (model.ContainerIdentifier, error) {
	v, ok, err := f.store.HGet(ctx, dirNameIndexKey(parent), name)
	if err != nil {
		return 0, apperror.New(apperror.TransientRemote, "fetcher.GetContainerIDByName", err)
	}
	if !ok {
		return 0, apperror.New(apperror.NotFound, "fetcher.GetContainerIDByName", nil)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.ChecksumMismatch, "fetcher.GetContainerIDByName", err)
	}
	return model.ContainerIdentifier(n), nil
}

// FileResult pairs a batched file fetch with the id it was fetched for, so
// BatchGetFiles callers can match results back to requests after they
// resolve out of order.
type FileResult struct {
	ID   model.FileIdentifier
	Meta *model.FileMetadata
	Err  error
}

// BatchGetFiles fetches every id in ids, one goroutine per id, matching
// the "batched variants returning one future per child" prefetch shape.
// It blocks until every fetch completes or ctx is done.
func (f *Fetcher) BatchGetFiles(ctx context.Context, ids []model.FileIdentifier) ([]FileResult, error) {
	results := make([]FileResult, len(ids))
	errCh := make(chan error, 1)
	doneCh := make(chan struct{})

	go func() {
		type slot struct {
			idx  int
			meta *model.FileMetadata
			err  error
		}
		out := make(chan slot, len(ids))
		for i, id := range ids {
			go func(i int, id model.FileIdentifier) {
				meta, err := f.GetFile(ctx, id)
				out <- slot{idx: i, meta: meta, err: err}
			}(i, id)
		}
		for range ids {
			s := <-out
			results[s.idx] = FileResult{ID: ids[s.idx], Meta: s.meta, Err: s.err}
		}
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetcher.BatchGetFiles: %w", ctx.Err())
	case err := <-errCh:
		return nil, err
	}
}
