// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nssession discovers, parses, and cross-indexes an entire
// neurophysiology recording (one event file plus its continuous-
// sampling siblings) and exposes every channel and event source as an
// addressable Entity.
//
// Opening a recording starts with Open, which discovers sibling files
// from one input path, parses all of them, and builds a single
// ordered entity list (segment/event entities first, then analog
// entities grouped by ascending sample frequency, then neural
// entities). Callers
// thereafter perform index- or time-based lookups against that list;
// each lookup translates into a direct byte-offset read against the
// owning nsfile.Parser.
package nssession // import "github.com/rippleneuro/nsfile/nssession"
