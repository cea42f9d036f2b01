// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsfile

import (
	"io"
	"os"
)

// Open opens the file at path, inspects its 8-byte magic, and returns
// the matching Parser. The caller must Close the returned Parser.
func Open(path string) (Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError(BadFile, err, "failed to open "+path)
	}
	p, err := newParser(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func newParser(f *os.File) (Parser, error) {
	var magic [magicLen]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, WrapError(BadFile, err, "failed to read file magic")
	}

	switch string(magic[:]) {
	case magicEvent:
		return newEventParser(f)
	case magicContinuousV1:
		return newContinuousV1Parser(f)
	case magicContinuousV2:
		return newContinuousV2Parser(f)
	default:
		return nil, NewErrorf(BadFile, "invalid or corrupt file: unrecognized magic %q", magic[:])
	}
}

// fileSize returns the total size of f by seeking to the end and back.
func fileSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, WrapError(BadFile, err, "failed to seek to end of file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, WrapError(BadFile, err, "failed to seek to start of file")
	}
	return size, nil
}
