// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nsfile is a parser for Blackrock/Ripple neurophysiology
// recording files.
//
// A recording consists of one event/spike file (".nev") and zero or
// more companion continuous-sampling files (".ns1" through ".ns9").
// Parsing a single file starts with a call to Open, which peeks the
// file's 8-byte magic and returns the matching Parser implementation:
// *EventParser for "NEURALEV", *ContinuousV1Parser for "NEURALSG", or
// *ContinuousV2Parser for "NEURALCD". Package nssession builds on top
// of this package to discover and cross-index an entire recording.
package nsfile // import "github.com/rippleneuro/nsfile/nsfile"
