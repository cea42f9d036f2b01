// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsfile

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEventFile synthesizes a minimal well-formed NEURALEV file with
// one NEUEVWAV extended header (electrode 5) and three data packets:
// one digital event packet (packet id 0) and two spike packets on
// electrode 5, with ascending timestamps.
func buildEventFile(t *testing.T) string {
	t.Helper()
	return buildEventFileWithResolutions(t, 30000, 30000)
}

// buildEventFileWithResolutions is buildEventFile parameterized over
// the basic header's distinct timestamp_resolution and
// sample_resolution fields.
func buildEventFileWithResolutions(t *testing.T, timestampResolution, sampleResolution uint32) string {
	t.Helper()

	const sampleCount = 4 // samples per data packet
	bytesDataPacket := 8 + 2*sampleCount
	nExtHeaders := 1
	bytesHeaders := basicHeaderSize + nExtHeaders*extHeaderSize

	buf := make([]byte, 0, bytesHeaders+3*bytesDataPacket)
	w := func(b ...byte) { buf = append(buf, b...) }
	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
	pad := func(n int) []byte { return make([]byte, n) }

	// Basic header (336 bytes)
	w([]byte(magicEvent)...)
	w(1, 0) // revision major/minor
	w(u16(0)...)
	w(u32(uint32(bytesHeaders))...)
	w(u32(uint32(bytesDataPacket))...)
	w(u32(timestampResolution)...)
	w(u32(sampleResolution)...)
	w(pad(16)...) // SYSTEMTIME (zeroed; not under test here)
	w(append([]byte("TestApp"), pad(32-7)...)...)
	w(append([]byte("hello"), pad(256-5)...)...)
	w(u32(uint32(nExtHeaders))...)
	for len(buf) < basicHeaderSize {
		buf = append(buf, 0)
	}
	require.Len(t, buf, basicHeaderSize)

	// NEUEVWAV extended header (32 bytes)
	extStart := len(buf)
	w([]byte(string(TagNeuevwav))...)
	w(u16(5)...) // packet id / electrode
	w(0, 0)      // phys conn, conn pin
	w(u16(1)...) // dig factor
	w(u16(0)...) // energy threshold
	w(u16(0)...) // high threshold (signed, stored as bits)
	w(u16(0)...) // low threshold
	w(1, 2)      // number sorted units, bytes per waveform
	for len(buf)-extStart < extHeaderSize {
		buf = append(buf, 0)
	}
	require.Len(t, buf, bytesHeaders)

	writePacket := func(ts uint32, packetID uint16, b1, b2 byte, samples []int16) {
		w(u32(ts)...)
		w(u16(packetID)...)
		w(b1, b2)
		for _, s := range samples {
			w(u16(uint16(s))...)
		}
	}
	writePacket(100, 0, 7, 0, []int16{1, 2, 3, 4})   // digital event, reason=7
	writePacket(200, 5, 1, 0, []int16{10, 20, 30, 40}) // spike, unit class 1
	writePacket(300, 5, 2, 0, []int16{11, 21, 31, 41}) // spike, unit class 2

	path := t.TempDir() + "/test.nev"
	require.NoError(t, os.WriteFile(path, buf, 0644))
	return path
}

func TestEventParserBasicHeader(t *testing.T) {
	path := buildEventFile(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, EventFile, p.Format())
	require.Equal(t, float64(30000), p.TimestampResolution())
	require.Equal(t, "TestApp", p.BasicHeader().Application)
	require.Equal(t, "hello", p.BasicHeader().Comment)
	require.EqualValues(t, 3, p.NDataPackets())
}

func TestEventParserExtHeaders(t *testing.T) {
	path := buildEventFile(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	cursor := p.ExtHeaders()
	require.True(t, cursor.Next())
	require.NotNil(t, cursor.Header.Neuevwav)
	require.EqualValues(t, 5, cursor.Header.Neuevwav.PacketID)
	require.False(t, cursor.Next())
	require.NoError(t, cursor.Err())
}

func TestEventParserDataPackets(t *testing.T) {
	path := buildEventFile(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	var timestamps []uint32
	cursor := p.DataPackets()
	for cursor.Next() {
		timestamps = append(timestamps, cursor.Packet.Timestamp)
	}
	require.NoError(t, cursor.Err())
	require.Equal(t, []uint32{100, 200, 300}, timestamps)

	// Consecutive timestamps are non-decreasing.
	for i := 1; i < len(timestamps); i++ {
		require.GreaterOrEqual(t, timestamps[i], timestamps[i-1])
	}
}

func TestEventParserDataPacketAtOutOfRange(t *testing.T) {
	path := buildEventFile(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.DataPacketAt(99)
	require.Error(t, err)
	var nsErr *Error
	require.ErrorAs(t, err, &nsErr)
	require.Equal(t, BadIndex, nsErr.Kind)
}

func TestEventParserKindClassification(t *testing.T) {
	path := buildEventFile(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	digital, err := p.DataPacketAt(0)
	require.NoError(t, err)
	require.Equal(t, DigitalEventPacket, digital.Kind)
	require.EqualValues(t, 7, digital.Reason)

	spike, err := p.DataPacketAt(1)
	require.NoError(t, err)
	require.Equal(t, SpikeSegmentPacket, spike.Kind)
	require.EqualValues(t, 5, spike.PacketID)
	require.EqualValues(t, 1, spike.UnitClass)
	require.Equal(t, []int16{10, 20, 30, 40}, spike.Waveform)
}

// TestEventParserTimestampResolutionUsesOwnField pins down that ticks
// are converted to seconds via the basic header's own
// timestamp_resolution field, not sample_resolution, on a file where
// the two genuinely differ (as real Ripple recordings sometimes do).
func TestEventParserTimestampResolutionUsesOwnField(t *testing.T) {
	path := buildEventFileWithResolutions(t, 1, 30000)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newEventParser(f)
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, float64(1), p.TimestampResolution())

	pkt, err := p.DataPacketAt(2)
	require.NoError(t, err)
	require.EqualValues(t, 300, pkt.Timestamp)
	// Seconds = ticks / timestamp_resolution = 300/1, not 300/30000.
	require.Equal(t, 300.0, float64(pkt.Timestamp)/p.TimestampResolution())
}
