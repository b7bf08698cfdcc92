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

package model

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"hash/crc32"

	"github.com/eosfusex/cachecore/pkg/apperror"
)

// EncodeFileMetadata serializes f as a gob payload trailed by a CRC32
// checksum of that payload. Serialize -> Deserialize -> Serialize is
// required to be byte-identical; a single flipped byte anywhere in the
// returned slice must make DecodeFileMetadata fail with ChecksumMismatch.
func EncodeFileMetadata(f *FileMetadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, apperror.New(apperror.InvalidArgument, "EncodeFileMetadata", err)
	}
	return appendChecksum(buf.Bytes()), nil
}

// DecodeFileMetadata verifies the trailing checksum and decodes the payload.
func DecodeFileMetadata(blob []byte) (*FileMetadata, error) {
	payload, err := verifyChecksum(blob)
	if err != nil {
		return nil, err
	}
	var f FileMetadata
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&f); err != nil {
		return nil, apperror.New(apperror.InvalidArgument, "DecodeFileMetadata", err)
	}
	return &f, nil
}

// EncodeContainerMetadata is the ContainerMetadata analogue of
// EncodeFileMetadata.
func EncodeContainerMetadata(c *ContainerMetadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, apperror.New(apperror.InvalidArgument, "EncodeContainerMetadata", err)
	}
	return appendChecksum(buf.Bytes()), nil
}

// DecodeContainerMetadata is the ContainerMetadata analogue of
// DecodeFileMetadata.
func DecodeContainerMetadata(blob []byte) (*ContainerMetadata, error) {
	payload, err := verifyChecksum(blob)
	if err != nil {
		return nil, err
	}
	var c ContainerMetadata
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&c); err != nil {
		return nil, apperror.New(apperror.InvalidArgument, "DecodeContainerMetadata", err)
	}
	return &c, nil
}

func appendChecksum(payload []byte) []byte {
	sum := crc32.ChecksumIEEE(payload)
	out := make([]byte, len(payload)+4)
	copy(out, payload)
	binary.BigEndian.PutUint32(out[len(payload):], sum)
	return out
}

func verifyChecksum(blob []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, apperror.New(apperror.ChecksumMismatch, "verifyChecksum", nil)
	}
	payload := blob[:len(blob)-4]
	want := binary.BigEndian.Uint32(blob[len(blob)-4:])
	if crc32.ChecksumIEEE(payload) != want {
		return nil, apperror.New(apperror.ChecksumMismatch, "verifyChecksum", nil)
	}
	return payload, nil
}

// LocalityHint builds the composite ordered-hash key described in §6 and
// the GLOSSARY: big-endian(parent_id) || ':' || name. It is injective on
// (parent, name) because the length-prefixing colon separator plus the
// fixed-width parent id make every encoding unique.
func LocalityHint(parent ContainerIdentifier, name string) []byte {
	out := make([]byte, 8, 8+1+len(name))
	binary.BigEndian.PutUint64(out, uint64(parent))
	out = append(out, ':')
	out = append(out, name...)
	return out
}
