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

package model_test

import (
	"testing"
	"time"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFile() *model.FileMetadata {
	return &model.FileMetadata{
		ID:       42,
		ParentID: 7,
		Name:     "report.csv",
		Size:     1024,
		UID:      1000,
		GID:      1000,
		LayoutID: 1,
		CTime:    time.Unix(1700000000, 0).UTC(),
		MTime:    time.Unix(1700000100, 0).UTC(),
		Checksum: []byte{1, 2, 3, 4},
		Locations: []uint32{1, 2},
		Xattr:    map[string]string{"user.eos.cache.cookie": "abc"},
	}
}

func TestEncodeDecodeRoundTripIsByteIdentical(t *testing.T) {
	f := sampleFile()

	blob1, err := model.EncodeFileMetadata(f)
	require.NoError(t, err)

	decoded, err := model.DecodeFileMetadata(blob1)
	require.NoError(t, err)

	blob2, err := model.EncodeFileMetadata(decoded)
	require.NoError(t, err)

	assert.Equal(t, blob1, blob2)
}

func TestSingleByteFlipCausesChecksumMismatch(t *testing.T) {
	f := sampleFile()
	blob, err := model.EncodeFileMetadata(f)
	require.NoError(t, err)

	flipped := append([]byte(nil), blob...)
	flipped[0] ^= 0xFF

	_, err = model.DecodeFileMetadata(flipped)
	require.Error(t, err)
	assert.Equal(t, apperror.ChecksumMismatch, apperror.Of(err))
}

func TestLocalityHintIsInjective(t *testing.T) {
	a := model.LocalityHint(1, "foo:bar")
	b := model.LocalityHint(1, "foo")
	c := model.LocalityHint(11, ":bar")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

func TestFileMetadataValidateRejectsDuplicateLocations(t *testing.T) {
	f := sampleFile()
	f.Locations = []uint32{3, 3}

	assert.Error(t, f.Validate())
}

func TestFileMetadataValidateRejectsEmptyName(t *testing.T) {
	f := sampleFile()
	f.Name = ""

	assert.Error(t, f.Validate())
}

func TestContainerMetadataRootMustBeOwnParent(t *testing.T) {
	c := &model.ContainerMetadata{ID: model.RootContainerID, ParentID: 2}
	assert.Error(t, c.Validate())

	c.ParentID = model.RootContainerID
	assert.NoError(t, c.Validate())
}

func TestIoStatSummaryEmpty(t *testing.T) {
	var s model.IoStatSummary
	assert.True(t, s.Empty())

	s.ReadSamples = 1
	assert.False(t, s.Empty())
}
