// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsfile

import (
	"io"
	"os"
	"time"
)

const (
	basicHeaderSize = 336 // NEURALEV basic header; NEURALCD's is 314 bytes (see ns2.go)
	extHeaderSize   = 32  // every NEURALEV extended header is 32 bytes
)

// BasicHeader is the 336-byte NEURALEV basic header.
type BasicHeader struct {
	RevisionMajor, RevisionMinor uint8
	Flags                       uint16
	BytesHeaders                uint32 // header + all extended headers
	BytesDataPacket             uint32 // stride of one data packet
	TimestampResolution         uint32 // Hz
	SampleResolution            uint32 // Hz
	Origin                      time.Time
	Application                 string
	Comment                     string
	NExtHeaders                 uint32
}

// ExtHeaderTag identifies the kind of a NEURALEV extended header by
// its first 8 bytes.
type ExtHeaderTag string

const (
	TagNeuevwav ExtHeaderTag = "NEUEVWAV"
	TagNeuevlbl ExtHeaderTag = "NEUEVLBL"
	TagNeuevflt ExtHeaderTag = "NEUEVFLT"
	TagDiglabel ExtHeaderTag = "DIGLABEL"
)

// ExtHeader is the decoded form of one 32-byte NEURALEV extended
// header. Exactly one of the typed fields below is populated,
// matching Tag.
type ExtHeader struct {
	Tag ExtHeaderTag

	Neuevwav *NeuevwavHeader
	Neuevlbl *NeuevlblHeader
	Neuevflt *NeuevfltHeader
	Diglabel *DiglabelHeader
}

// NeuevwavHeader declares a spike-producing electrode.
type NeuevwavHeader struct {
	PacketID          uint16 // electrode id for spike packets
	PhysConn          uint8
	ConnPin           uint8
	DigFactor         uint16
	EnergyThreshold   uint16
	HighThreshold     int16
	LowThreshold      int16
	NumberSortedUnits uint8
	BytesPerWaveform  uint8
}

// NeuevlblHeader carries a label for the electrode identified by PacketID.
type NeuevlblHeader struct {
	PacketID int16
	Label    string
}

// NeuevfltHeader carries filter parameters for the electrode identified
// by PacketID.
type NeuevfltHeader struct {
	PacketID        uint16
	HighFreqCorner  uint32
	HighFreqOrder   uint32
	HighFilterType  uint16
	LowFreqCorner   uint32
	LowFreqOrder    uint32
	LowFilterType   uint16
}

// DiglabelHeader carries a label and mode for a digital event source.
type DiglabelHeader struct {
	Label string
	Mode  uint8
}

// DataPacketKind distinguishes the two packet kinds multiplexed in a
// NEURALEV data packet stream.
type DataPacketKind int

const (
	DigitalEventPacket DataPacketKind = iota
	SpikeSegmentPacket
)

// DataPacket is one decoded NEURALEV data packet.
type DataPacket struct {
	Timestamp uint32 // ticks
	PacketID  uint16
	Kind      DataPacketKind

	// Populated when Kind == DigitalEventPacket.
	Reason       uint8
	DigitalInput uint16
	Input        [5]int16

	// Populated when Kind == SpikeSegmentPacket.
	UnitClass uint8
	Waveform  []int16
}

// EventParser reads a NEURALEV event/spike file.
type EventParser struct {
	f    *os.File
	hdr  BasicHeader
	size int64

	nDataPackets int64
	sampleCount  int
	timeSpan     float64
}

func newEventParser(f *os.File) (*EventParser, error) {
	p := &EventParser{f: f}
	hdr, err := p.readBasicHeader()
	if err != nil {
		return nil, err
	}
	p.hdr = hdr

	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	p.size = size

	if hdr.BytesDataPacket == 0 {
		return nil, NewErrorf(BadFile, "bytes_data_packet is zero")
	}
	p.nDataPackets = (size - int64(hdr.BytesHeaders)) / int64(hdr.BytesDataPacket)
	if p.nDataPackets < 0 {
		p.nDataPackets = 0
	}
	p.sampleCount = (int(hdr.BytesDataPacket) - 8) / 2

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, WrapError(BadFile, err, "failed to seek to start of file")
	}
	return p, nil
}

func (p *EventParser) Format() FileFormat { return EventFile }

// TimestampResolution is the basic header's own timestamp_resolution
// field. This is kept distinct from SampleResolution: a tick is one
// increment of the timestamp resolution clock, which is a different
// clock than the one sample_resolution describes.
func (p *EventParser) TimestampResolution() float64 { return float64(p.hdr.TimestampResolution) }
func (p *EventParser) Close() error                 { return p.f.Close() }

// TimeSpan is populated by the session during ingest (the last
// packet's timestamp is not known until the full data stream has been
// scanned); until then it reports 0.
func (p *EventParser) TimeSpan() float64 { return p.timeSpan }

// BasicHeader returns the parsed 336-byte basic header.
func (p *EventParser) BasicHeader() BasicHeader { return p.hdr }

// NDataPackets is the number of fixed-stride data packets in the
// file: (bytes_headers subtracted from file size) / bytes_data_packet.
func (p *EventParser) NDataPackets() int64 { return p.nDataPackets }

// SetTimeSpan records the observed time span, in seconds, of this
// file's contents. It is set by nssession once the data packet stream
// has been fully scanned during ingest.
func (p *EventParser) SetTimeSpan(seconds float64) { p.timeSpan = seconds }

func (p *EventParser) readBasicHeader() (BasicHeader, error) {
	buf := make([]byte, basicHeaderSize)
	if _, err := p.f.ReadAt(buf, 0); err != nil {
		return BasicHeader{}, WrapError(BadFile, err, "failed reading NEURALEV basic header")
	}
	d := newDecoder(buf)
	magic := d.fixedString(magicLen)
	if magic != magicEvent {
		return BasicHeader{}, NewErrorf(BadFile, "cannot find NEURALEV header, got %q", magic)
	}
	h := BasicHeader{
		RevisionMajor: d.u8(),
		RevisionMinor: d.u8(),
		Flags:         d.u16(),
	}
	h.BytesHeaders = d.u32()
	h.BytesDataPacket = d.u32()
	h.TimestampResolution = d.u32()
	h.SampleResolution = d.u32()
	h.Origin = d.systemTime()
	h.Application = d.fixedString(32)
	h.Comment = d.fixedString(256)
	h.NExtHeaders = d.u32()
	if err := d.Err(); err != nil {
		return BasicHeader{}, err
	}
	return h, nil
}

// ExtHeaderCursor is a pull-style iterator over a NEURALEV file's
// extended headers, mirroring perffile.Records.
type ExtHeaderCursor struct {
	p       *EventParser
	remain  uint32
	offset  int64
	Header  ExtHeader
	err     error
}

// ExtHeaders returns a cursor over this file's extended headers.
func (p *EventParser) ExtHeaders() *ExtHeaderCursor {
	return &ExtHeaderCursor{p: p, remain: p.hdr.NExtHeaders, offset: basicHeaderSize}
}

func (c *ExtHeaderCursor) Err() error { return c.err }

// Next decodes the next extended header into c.Header, returning
// false at end of stream or on error.
func (c *ExtHeaderCursor) Next() bool {
	if c.err != nil || c.remain == 0 {
		return false
	}
	hdr, err := c.p.extHeaderAt(c.offset)
	if err != nil {
		c.err = err
		return false
	}
	c.Header = hdr
	c.offset += extHeaderSize
	c.remain--
	return true
}

// ExtHeaderAt returns the extended header at the given index,
// performing a direct seek. Indices out of [0, NExtHeaders) fail with
// BadIndex.
func (p *EventParser) ExtHeaderAt(index int) (ExtHeader, error) {
	if index < 0 || index >= int(p.hdr.NExtHeaders) {
		return ExtHeader{}, NewErrorf(BadIndex, "invalid extended header index %d", index)
	}
	return p.extHeaderAt(basicHeaderSize + int64(index)*extHeaderSize)
}

func (p *EventParser) extHeaderAt(offset int64) (ExtHeader, error) {
	buf := make([]byte, extHeaderSize)
	if _, err := p.f.ReadAt(buf, offset); err != nil {
		return ExtHeader{}, WrapError(BadFile, err, "failed reading extended header")
	}
	d := newDecoder(buf)
	tag := ExtHeaderTag(d.fixedString(8))

	var out ExtHeader
	out.Tag = tag
	switch tag {
	case TagNeuevwav:
		out.Neuevwav = &NeuevwavHeader{
			PacketID:          d.u16(),
			PhysConn:          d.u8(),
			ConnPin:           d.u8(),
			DigFactor:         d.u16(),
			EnergyThreshold:   d.u16(),
			HighThreshold:     d.i16(),
			LowThreshold:      d.i16(),
			NumberSortedUnits: d.u8(),
			BytesPerWaveform:  d.u8(),
		}
	case TagNeuevlbl:
		out.Neuevlbl = &NeuevlblHeader{
			PacketID: d.i16(),
			Label:    d.fixedString(16),
		}
	case TagNeuevflt:
		out.Neuevflt = &NeuevfltHeader{
			PacketID:       d.u16(),
			HighFreqCorner: d.u32(),
			HighFreqOrder:  d.u32(),
			HighFilterType: d.u16(),
			LowFreqCorner:  d.u32(),
			LowFreqOrder:   d.u32(),
			LowFilterType:  d.u16(),
		}
	case TagDiglabel:
		out.Diglabel = &DiglabelHeader{
			Label: d.fixedString(16),
			Mode:  d.u8(),
		}
	default:
		return ExtHeader{}, NewErrorf(BadFile, "unknown extended header tag %q", string(tag))
	}
	if err := d.Err(); err != nil {
		return ExtHeader{}, err
	}
	return out, nil
}

// DataPacketCursor is a pull-style iterator over a NEURALEV file's
// data packets.
type DataPacketCursor struct {
	p      *EventParser
	ord    int64
	Ord    int64
	Packet DataPacket
	err    error
}

// DataPackets returns a cursor over this file's fixed-stride data
// packets, in file order.
func (p *EventParser) DataPackets() *DataPacketCursor {
	return &DataPacketCursor{p: p}
}

func (c *DataPacketCursor) Err() error { return c.err }

// Next decodes the next data packet into c.Packet, returning false at
// end of stream or on error. c.Ord holds the ordinal just decoded.
func (c *DataPacketCursor) Next() bool {
	if c.err != nil || c.ord >= c.p.nDataPackets {
		return false
	}
	pkt, err := c.p.dataPacketAt(c.ord)
	if err != nil {
		c.err = err
		return false
	}
	c.Packet = pkt
	c.Ord = c.ord
	c.ord++
	return true
}

// DataPacketAt performs random access by ordinal: byte offset is
// header_bytes + ordinal*bytes_data_packet.
func (p *EventParser) DataPacketAt(ordinal int64) (DataPacket, error) {
	if ordinal < 0 || ordinal >= p.nDataPackets {
		return DataPacket{}, NewErrorf(BadIndex, "invalid packet ordinal %d", ordinal)
	}
	return p.dataPacketAt(ordinal)
}

func (p *EventParser) dataPacketAt(ordinal int64) (DataPacket, error) {
	offset := int64(p.hdr.BytesHeaders) + ordinal*int64(p.hdr.BytesDataPacket)
	buf := make([]byte, p.hdr.BytesDataPacket)
	if _, err := p.f.ReadAt(buf, offset); err != nil {
		return DataPacket{}, WrapError(BadFile, err, "failed reading data packet")
	}
	d := newDecoder(buf)
	ts := d.u32()
	packetID := d.u16()
	b1 := d.u8()
	b2 := d.u8()
	samples := d.i16s(p.sampleCount)
	if err := d.Err(); err != nil {
		return DataPacket{}, err
	}

	pkt := DataPacket{Timestamp: ts, PacketID: packetID}
	if packetID == 0 {
		pkt.Kind = DigitalEventPacket
		pkt.Reason = b1
		_ = b2 // reserved
		if len(samples) > 0 {
			pkt.DigitalInput = uint16(samples[0])
		}
		for i := 0; i < 5 && i+1 < len(samples); i++ {
			pkt.Input[i] = samples[i+1]
		}
	} else {
		pkt.Kind = SpikeSegmentPacket
		pkt.UnitClass = b1
		_ = b2 // reserved
		pkt.Waveform = samples
	}
	return pkt, nil
}
