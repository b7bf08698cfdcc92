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

// Package model defines the wire- and cache-level data types shared across
// the metadata provider and the per-file data cache: identifiers, metadata
// records, I/O statistics samples and journal records.
package model

import "fmt"

// FileIdentifier and ContainerIdentifier are distinct, non-interchangeable
// opaque 64-bit values. The zero value is reserved and always means
// "absent"; looking one up must fail immediately with NotFound.
type FileIdentifier uint64

type ContainerIdentifier uint64

// RootContainerID is the container id of the filesystem root; its parent id
// equals itself.
const RootContainerID ContainerIdentifier = 1

// IsZero reports whether the identifier is the reserved absent value.
func (f FileIdentifier) IsZero() bool { return f == 0 }

func (f FileIdentifier) String() string { return fmt.Sprintf("fid:%d", uint64(f)) }

// IsZero reports whether the identifier is the reserved absent value.
func (c ContainerIdentifier) IsZero() bool { return c == 0 }

func (c ContainerIdentifier) String() string { return fmt.Sprintf("cid:%d", uint64(c)) }

// IsRoot reports whether this is the filesystem root container.
func (c ContainerIdentifier) IsRoot() bool { return c == RootContainerID }
