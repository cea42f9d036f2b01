// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nssession

import (
	"sort"

	"github.com/rippleneuro/nsfile/nsfile"
)

// SearchMode selects how IndexByTime resolves a query time that
// falls between two index-table entries.
type SearchMode int

const (
	// Before returns the greatest index with time <= t.
	Before SearchMode = iota
	// At requires an exact match.
	At
	// After returns the least index with time >= t.
	After
)

// index is the append-only (timestamp, packet ordinal) table backing
// segment and event entities. Timestamps are ticks of the owning
// file's timestamp resolution; ordinals index into the event file's
// packet stream.
type index struct {
	timestamps []uint32
	ordinals   []int64
}

func (ix *index) append(timestamp uint32, ordinal int64) {
	ix.timestamps = append(ix.timestamps, timestamp)
	ix.ordinals = append(ix.ordinals, ordinal)
}

func (ix *index) len() int { return len(ix.timestamps) }

// timestampAt returns the i-th timestamp, in ticks.
func (ix *index) timestampAt(i int) (uint32, error) {
	if i < 0 || i >= ix.len() {
		return 0, nsfile.NewErrorf(nsfile.BadIndex, "index %d out of range [0, %d)", i, ix.len())
	}
	return ix.timestamps[i], nil
}

// ordinalAt returns the i-th packet ordinal.
func (ix *index) ordinalAt(i int) (int64, error) {
	if i < 0 || i >= ix.len() {
		return 0, nsfile.NewErrorf(nsfile.BadIndex, "index %d out of range [0, %d)", i, ix.len())
	}
	return ix.ordinals[i], nil
}

// search returns the local index matching t (in ticks) under mode,
// via bisection. The timestamp column is assumed non-decreasing; this
// is a precondition of correct results, not one enforced at ingest.
func (ix *index) search(t uint32, mode SearchMode) (int, error) {
	n := ix.len()
	// lo is the first index with timestamps[lo] >= t.
	lo := sort.Search(n, func(i int) bool { return ix.timestamps[i] >= t })

	switch mode {
	case At:
		if lo < n && ix.timestamps[lo] == t {
			return lo, nil
		}
		return 0, nsfile.NewErrorf(nsfile.BadIndex, "no exact match for time %d", t)
	case After:
		if lo >= n {
			return 0, nsfile.NewErrorf(nsfile.BadIndex, "no index at or after time %d", t)
		}
		return lo, nil
	case Before:
		// The greatest index with timestamps[i] <= t is one before
		// the first index with timestamps[i] > t.
		hi := sort.Search(n, func(i int) bool { return ix.timestamps[i] > t })
		if hi == 0 {
			return 0, nsfile.NewErrorf(nsfile.BadIndex, "no index at or before time %d", t)
		}
		return hi - 1, nil
	default:
		return 0, nsfile.NewErrorf(nsfile.LibError, "invalid search mode %d", mode)
	}
}
