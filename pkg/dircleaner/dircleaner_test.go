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

package dircleaner_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eosfusex/cachecore/clock"
	"github.com/eosfusex/cachecore/pkg/dircleaner"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o644))
}

func TestScanAllRegistersMatchingSuffix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jc"), 10)
	writeFile(t, filepath.Join(dir, "b.jc"), 20)
	writeFile(t, filepath.Join(dir, "c.txt"), 30)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(".jc"))

	stats := dc.Stats()
	require.Equal(t, 2, stats.Files)
	require.Equal(t, int64(30), stats.Bytes)
}

func TestCleanAllRemovesEverythingMatched(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.jc")
	writeFile(t, p, 10)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.CleanAll(".jc"))

	_, err := os.Stat(p)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, 0, dc.Stats().Files)
}

func TestTouchUpdatesBookkeepingForNewFile(t *testing.T) {
	dir := t.TempDir()
	dc := dircleaner.New(dir)

	dc.Touch(filepath.Join(dir, "new"), 42)
	stats := dc.Stats()
	require.Equal(t, 1, stats.Files)
	require.Equal(t, int64(42), stats.Bytes)

	dc.Touch(filepath.Join(dir, "new"), 100)
	stats = dc.Stats()
	require.Equal(t, 1, stats.Files)
	require.Equal(t, int64(100), stats.Bytes)
}

func TestForgetDropsBookkeepingWithoutTouchingDisk(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	writeFile(t, p, 5)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))
	require.Equal(t, 1, dc.Stats().Files)

	dc.Forget(p)
	require.Equal(t, 0, dc.Stats().Files)

	_, err := os.Stat(p)
	require.NoError(t, err)
}

func TestTrimForceEvictsEverythingRegardlessOfFreeSpace(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a")
	p2 := filepath.Join(dir, "b")
	writeFile(t, p1, 5)
	writeFile(t, p2, 5)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))

	evicted, freed, err := dc.Trim(true)
	require.NoError(t, err)
	require.Equal(t, 2, evicted)
	require.Equal(t, int64(10), freed)
	require.Equal(t, 0, dc.Stats().Files)
}

func TestTrimNonForcedEvictsOldestUntilAtOrBelowSizeCap(t *testing.T) {
	dir := t.TempDir()
	pa := filepath.Join(dir, "a")
	pb := filepath.Join(dir, "b")
	pc := filepath.Join(dir, "c")
	writeFile(t, pa, 10)
	writeFile(t, pb, 10)
	writeFile(t, pc, 10)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))
	dc.SizeCap = 20

	evicted, freed, err := dc.Trim(false)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)
	require.Equal(t, int64(10), freed)

	stats := dc.Stats()
	require.LessOrEqual(t, stats.Bytes, int64(20))
	require.Equal(t, 2, stats.Files)

	_, err = os.Stat(pa)
	require.True(t, os.IsNotExist(err), "oldest file should have been evicted first")
	_, err = os.Stat(pb)
	require.NoError(t, err)
	_, err = os.Stat(pc)
	require.NoError(t, err)
}

func TestTrimNonForcedEvictsOldestUntilAtOrBelowFileCap(t *testing.T) {
	dir := t.TempDir()
	pa := filepath.Join(dir, "a")
	pb := filepath.Join(dir, "b")
	pc := filepath.Join(dir, "c")
	writeFile(t, pa, 1)
	writeFile(t, pb, 1)
	writeFile(t, pc, 1)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))
	dc.FileCap = 2

	evicted, _, err := dc.Trim(false)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)
	require.Equal(t, 2, dc.Stats().Files)

	_, err = os.Stat(pa)
	require.True(t, os.IsNotExist(err))
}

func TestTrimNonForcedIsNoopUnderCaps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 10)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))
	dc.SizeCap = 1000
	dc.FileCap = 1000

	evicted, freed, err := dc.Trim(false)
	require.NoError(t, err)
	require.Equal(t, 0, evicted)
	require.Equal(t, int64(0), freed)
	require.Equal(t, 1, dc.Stats().Files)
}

func TestTrimCountsExternalHintTowardCaps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 10)

	dc := dircleaner.New(dir)
	require.NoError(t, dc.ScanAll(""))
	dc.SizeCap = 15
	dc.SetExternalHint(dircleaner.ExternalHint{Bytes: 10})

	evicted, _, err := dc.Trim(false)
	require.NoError(t, err)
	require.Equal(t, 1, evicted, "external hint bytes should count toward SizeCap")
}

func TestSetExternalHintIsReflectedInStats(t *testing.T) {
	dir := t.TempDir()
	dc := dircleaner.New(dir)
	dc.SetExternalHint(dircleaner.ExternalHint{Files: 3, Bytes: 900})

	stats := dc.Stats()
	require.Equal(t, int64(900), stats.External.Bytes)
	require.EqualValues(t, 3, stats.External.Files)
}

func TestStopIsIdempotentAndWaitsForLeveler(t *testing.T) {
	dir := t.TempDir()
	dc := dircleaner.New(dir)
	dc.StartLeveler("")
	dc.Stop()
	dc.Stop()
}

func TestClockDefaultsToRealClockButAcceptsSubstitution(t *testing.T) {
	dir := t.TempDir()
	dc := dircleaner.New(dir)
	_, isReal := dc.Clock.(clock.RealClock)
	require.True(t, isReal)

	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	dc.Clock = sc
	require.NoError(t, dc.ScanAll(""))
}
