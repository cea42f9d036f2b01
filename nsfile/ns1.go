// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsfile

import (
	"io"
	"os"
)

const (
	ns1PrefixSize          = 32      // magic(8) + label(16) + period(4) + channel_count(4)
	ns1TimestampResolution = 30000.0 // Hz, fixed by format definition
)

// ContinuousV1BasicHeader is the variable-length NEURALSG basic
// header.
type ContinuousV1BasicHeader struct {
	Label        string
	Period       uint32
	ChannelCount uint32
	ChannelID    []uint32
}

// ContinuousV1Parser reads a NEURALSG continuous-sampling file. Its
// basic header length depends on channel count, so construction
// reads a fixed prefix first and then re-reads the full header once
// the size is known.
type ContinuousV1Parser struct {
	f    *os.File
	hdr  ContinuousV1BasicHeader
	size int64

	headerSize    int64
	nDataPoints   int64
}

func newContinuousV1Parser(f *os.File) (*ContinuousV1Parser, error) {
	p := &ContinuousV1Parser{f: f}

	prefix := make([]byte, ns1PrefixSize)
	if _, err := f.ReadAt(prefix, 0); err != nil {
		return nil, WrapError(BadFile, err, "failed reading NEURALSG prefix")
	}
	d := newDecoder(prefix)
	magic := d.fixedString(magicLen)
	if magic != magicContinuousV1 {
		return nil, NewErrorf(BadFile, "cannot find NEURALSG header, got %q", magic)
	}
	d.fixedString(16) // label, re-read below once full header size is known
	period := d.u32()
	channelCount := d.u32()
	if err := d.Err(); err != nil {
		return nil, err
	}

	p.headerSize = int64(ns1PrefixSize) + int64(channelCount)*4
	hdr, err := p.readBasicHeader(period, channelCount)
	if err != nil {
		return nil, err
	}
	p.hdr = hdr

	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	p.size = size
	p.nDataPoints = (size - p.headerSize) / 2 / int64(channelCount)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, WrapError(BadFile, err, "failed to seek to start of file")
	}
	return p, nil
}

func (p *ContinuousV1Parser) readBasicHeader(period, channelCount uint32) (ContinuousV1BasicHeader, error) {
	buf := make([]byte, p.headerSize)
	if _, err := p.f.ReadAt(buf, 0); err != nil {
		return ContinuousV1BasicHeader{}, WrapError(BadFile, err, "failed reading NEURALSG header")
	}
	d := newDecoder(buf)
	d.fixedString(magicLen)
	label := d.fixedString(16)
	d.u32() // period, already known
	d.u32() // channel_count, already known
	ids := make([]uint32, channelCount)
	for i := range ids {
		ids[i] = d.u32()
	}
	if err := d.Err(); err != nil {
		return ContinuousV1BasicHeader{}, err
	}
	return ContinuousV1BasicHeader{
		Label:        label,
		Period:       period,
		ChannelCount: channelCount,
		ChannelID:    ids,
	}, nil
}

func (p *ContinuousV1Parser) Format() FileFormat           { return ContinuousV1 }
func (p *ContinuousV1Parser) TimestampResolution() float64 { return ns1TimestampResolution }
func (p *ContinuousV1Parser) Close() error                 { return p.f.Close() }

// TimeSpan is n_samples*period/timestamp_resolution.
func (p *ContinuousV1Parser) TimeSpan() float64 {
	return float64(p.nDataPoints*int64(p.hdr.Period)) / ns1TimestampResolution
}

// BasicHeader returns the parsed variable-length basic header.
func (p *ContinuousV1Parser) BasicHeader() ContinuousV1BasicHeader { return p.hdr }

// NDataPoints is the per-channel sample count.
func (p *ContinuousV1Parser) NDataPoints() int64 { return p.nDataPoints }

// Scale is always 1.0 for NEURALSG files: samples are emitted in
// native units without conversion.
func (p *ContinuousV1Parser) Scale() float64 { return 1.0 }

// Units is always "V" for NEURALSG files.
func (p *ContinuousV1Parser) Units() string { return "V" }

// GetAnalogData returns count contiguous samples of channel starting
// at startIndex, scaled by Scale (a no-op here). If count is negative
// it defaults to "read to end of data". Samples are interleaved in
// the file; a read that reaches EOF mid-range returns a truncated
// buffer instead of failing.
func (p *ContinuousV1Parser) GetAnalogData(channel int, startIndex int64, count int64) ([]float64, error) {
	if channel < 0 || uint32(channel) >= p.hdr.ChannelCount {
		return nil, NewErrorf(BadIndex, "invalid channel %d", channel)
	}
	if count < 0 {
		count = p.nDataPoints - startIndex
	}
	if count < 0 {
		count = 0
	}

	channelCount := int64(p.hdr.ChannelCount)
	packetSize := channelCount * 2
	skipSize := packetSize - 2
	offset := p.headerSize + startIndex*packetSize + 2*int64(channel)

	out := make([]float64, 0, count)
	buf := make([]byte, 2)
	pos := offset
	for i := int64(0); i < count; i++ {
		n, err := p.f.ReadAt(buf, pos)
		if n < 2 {
			if err != nil && err != io.EOF {
				return out, WrapError(BadFile, err, "failed reading analog sample")
			}
			break
		}
		sample := int16(uint16(buf[0]) | uint16(buf[1])<<8)
		out = append(out, float64(sample))
		pos += skipSize + 2
	}
	return out, nil
}
