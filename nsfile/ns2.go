// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsfile

import (
	"io"
	"os"
	"time"
)

// continuousV2BasicHeaderSize is the literal size of the
// "<8s2BI16s256s2I8HI>" field layout: 8+2+4+16+256+4+4+16+4 = 314
// bytes. This is distinct from the unrelated 336-byte NEURALEV basic
// header; the two formats do not share a header size.
const continuousV2BasicHeaderSize = 314

// ccHeaderSize is the size of a "CC" extended header:
// "<2sH16s2B4h16s2IH2IH>" = 2+2+16+2+8+16+8+2+8+2 = 66 bytes.
const ccHeaderSize = 66

// ContinuousV2BasicHeader is the fixed NEURALCD basic header.
type ContinuousV2BasicHeader struct {
	RevisionMajor, RevisionMinor uint8
	BytesHeaders                uint32
	Label                       string
	Comment                     string
	Period                      uint32
	TimestampResolution         uint32
	Origin                      time.Time
	ChannelCount                uint32
}

// CCHeader is one per-channel extended header in a NEURALCD file.
type CCHeader struct {
	ElectrodeID     uint16
	ElectrodeLabel  string
	PhysConn        uint8
	ConnPin         uint8
	MinDigValue     int16
	MaxDigValue     int16
	MinAnalogValue  int16
	MaxAnalogValue  int16
	Units           string
	HighFreqCorner  uint32
	HighFreqOrder   uint32
	HighFilterType  uint16
	LowFreqCorner   uint32
	LowFreqOrder    uint32
	LowFilterType   uint16
}

// Scale converts digital counts to physical analog units:
// (max_analog - min_analog) / (max_digital - min_digital).
func (h CCHeader) Scale() float64 {
	return (float64(h.MaxAnalogValue) - float64(h.MinAnalogValue)) /
		(float64(h.MaxDigValue) - float64(h.MinDigValue))
}

// ContinuousV2Parser reads a NEURALCD continuous-sampling file.
type ContinuousV2Parser struct {
	f    *os.File
	hdr  ContinuousV2BasicHeader
	cc   []CCHeader
	size int64

	dataOffset  int64
	nDataPoints int64
}

func newContinuousV2Parser(f *os.File) (*ContinuousV2Parser, error) {
	p := &ContinuousV2Parser{f: f}
	hdr, err := p.readBasicHeader()
	if err != nil {
		return nil, err
	}
	p.hdr = hdr

	cc := make([]CCHeader, hdr.ChannelCount)
	for i := range cc {
		h, err := p.readCCHeader(continuousV2BasicHeaderSize + int64(i)*ccHeaderSize)
		if err != nil {
			return nil, err
		}
		cc[i] = h
	}
	p.cc = cc

	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	p.size = size
	p.dataOffset = int64(hdr.BytesHeaders)
	if hdr.ChannelCount > 0 {
		p.nDataPoints = (size - int64(hdr.BytesHeaders)) / int64(hdr.ChannelCount) / 2
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, WrapError(BadFile, err, "failed to seek to start of file")
	}
	return p, nil
}

func (p *ContinuousV2Parser) readBasicHeader() (ContinuousV2BasicHeader, error) {
	buf := make([]byte, continuousV2BasicHeaderSize)
	if _, err := p.f.ReadAt(buf, 0); err != nil {
		return ContinuousV2BasicHeader{}, WrapError(BadFile, err, "failed reading NEURALCD basic header")
	}
	d := newDecoder(buf)
	magic := d.fixedString(magicLen)
	if magic != magicContinuousV2 {
		return ContinuousV2BasicHeader{}, NewErrorf(BadFile, "cannot find NEURALCD header, got %q", magic)
	}
	h := ContinuousV2BasicHeader{
		RevisionMajor: d.u8(),
		RevisionMinor: d.u8(),
	}
	h.BytesHeaders = d.u32()
	h.Label = d.fixedString(16)
	h.Comment = d.fixedString(256)
	h.Period = d.u32()
	h.TimestampResolution = d.u32()
	h.Origin = d.systemTime()
	h.ChannelCount = d.u32()
	if err := d.Err(); err != nil {
		return ContinuousV2BasicHeader{}, err
	}
	return h, nil
}

func (p *ContinuousV2Parser) readCCHeader(offset int64) (CCHeader, error) {
	buf := make([]byte, ccHeaderSize)
	if _, err := p.f.ReadAt(buf, offset); err != nil {
		return CCHeader{}, WrapError(BadFile, err, "failed reading CC extended header")
	}
	d := newDecoder(buf)
	magic := d.fixedString(2)
	if magic != "CC" {
		return CCHeader{}, NewErrorf(BadFile, "unknown extended header tag %q", magic)
	}
	h := CCHeader{
		ElectrodeID:    d.u16(),
		ElectrodeLabel: d.fixedString(16),
		PhysConn:       d.u8(),
		ConnPin:        d.u8(),
		MinDigValue:    d.i16(),
		MaxDigValue:    d.i16(),
		MinAnalogValue: d.i16(),
		MaxAnalogValue: d.i16(),
		Units:          d.fixedString(16),
	}
	h.HighFreqCorner = d.u32()
	h.HighFreqOrder = d.u32()
	h.HighFilterType = d.u16()
	h.LowFreqCorner = d.u32()
	h.LowFreqOrder = d.u32()
	h.LowFilterType = d.u16()
	if err := d.Err(); err != nil {
		return CCHeader{}, err
	}
	return h, nil
}

func (p *ContinuousV2Parser) Format() FileFormat           { return ContinuousV2 }
func (p *ContinuousV2Parser) TimestampResolution() float64 { return float64(p.hdr.TimestampResolution) }
func (p *ContinuousV2Parser) Close() error                 { return p.f.Close() }

// TimeSpan is n_samples*period/timestamp_resolution.
func (p *ContinuousV2Parser) TimeSpan() float64 {
	return float64(p.nDataPoints*int64(p.hdr.Period)) / float64(p.hdr.TimestampResolution)
}

// BasicHeader returns the parsed fixed basic header.
func (p *ContinuousV2Parser) BasicHeader() ContinuousV2BasicHeader { return p.hdr }

// CCHeaders returns the per-channel extended headers, in channel order.
func (p *ContinuousV2Parser) CCHeaders() []CCHeader { return p.cc }

// NDataPoints is the per-channel sample count, computed by dividing
// the data region following the basic and CC headers evenly across
// channels. This assumes the data region is one contiguous packet; a
// file with multiple data packets (each framed by its own 9-byte
// header) would need the packet boundaries walked to compute this
// exactly.
func (p *ContinuousV2Parser) NDataPoints() int64 { return p.nDataPoints }

// GetAnalogData returns count contiguous samples of channelIndex
// starting at startIndex, as raw (unscaled) values; nssession applies
// the channel's scale factor. If count is negative it defaults to
// reading to the end of the data. A read that reaches EOF mid-range
// returns a truncated buffer.
func (p *ContinuousV2Parser) GetAnalogData(channelIndex int, startIndex int64, count int64) ([]float64, error) {
	if channelIndex < 0 || uint32(channelIndex) >= p.hdr.ChannelCount {
		return nil, NewErrorf(BadIndex, "invalid channel index %d", channelIndex)
	}
	if count < 0 {
		count = p.nDataPoints - startIndex
	}
	if count < 0 {
		count = 0
	}

	channelCount := int64(p.hdr.ChannelCount)
	skipSize := 2*channelCount - 2
	offset := p.dataOffset + 9 + 2*channelCount*startIndex + 2*int64(channelIndex)

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
