// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nssession

import (
	"math"

	"github.com/rippleneuro/nsfile/nsfile"
)

// EntityType tags the four Entity variants.
type EntityType int

const (
	SegmentEntityType EntityType = iota
	EventEntityType
	NeuralEntityType
	AnalogEntityType
)

func (t EntityType) String() string {
	switch t {
	case SegmentEntityType:
		return "segment"
	case EventEntityType:
		return "event"
	case NeuralEntityType:
		return "neural"
	case AnalogEntityType:
		return "analog"
	default:
		return "unknown"
	}
}

// Entity is the common interface shared by all four entity variants.
// Callers dispatch to variant-specific data accessors by type
// switching on the concrete type, or by inspecting Type().
type Entity interface {
	Type() EntityType
	ItemCount() int
	TimeByIndex(i int) (float64, error)
	IndexByTime(t float64, mode SearchMode) (int, error)
}

// EventData is one digital event, as returned by EventEntity.EventData.
type EventData struct {
	TimestampSeconds float64
	DigitalInput     uint16
	Input            [5]int16
}

// SegmentData is one spike waveform, as returned by
// SegmentEntity.SegmentData and NeuralEntity.SegmentData.
type SegmentData struct {
	TimestampSeconds float64
	UnitClass        uint8
	Waveform         []int16
}

// SegmentEntity is one spike-sorted electrode declared by a
// NEUEVWAV extended header in an event file.
type SegmentEntity struct {
	parser     *nsfile.EventParser
	electrodeID uint16
	label      string
	resolution float64
	idx        index
}

func (e *SegmentEntity) Type() EntityType { return SegmentEntityType }
func (e *SegmentEntity) ItemCount() int   { return e.idx.len() }

// ElectrodeID is the electrode id this entity represents.
func (e *SegmentEntity) ElectrodeID() uint16 { return e.electrodeID }

// Label is the electrode label, set from a matching NEUEVLBL header,
// or "" if none was observed.
func (e *SegmentEntity) Label() string { return e.label }

func (e *SegmentEntity) TimeByIndex(i int) (float64, error) {
	ts, err := e.idx.timestampAt(i)
	if err != nil {
		return 0, err
	}
	return float64(ts) / e.resolution, nil
}

func (e *SegmentEntity) IndexByTime(t float64, mode SearchMode) (int, error) {
	return e.idx.search(uint32(math.Round(t*e.resolution)), mode)
}

// SegmentData returns the timestamp, unit class, and waveform samples
// for the i-th spike in this entity's index table.
func (e *SegmentEntity) SegmentData(i int) (SegmentData, error) {
	ordinal, err := e.idx.ordinalAt(i)
	if err != nil {
		return SegmentData{}, err
	}
	pkt, err := e.parser.DataPacketAt(ordinal)
	if err != nil {
		return SegmentData{}, err
	}
	return SegmentData{
		TimestampSeconds: float64(pkt.Timestamp) / e.resolution,
		UnitClass:        pkt.UnitClass,
		Waveform:         pkt.Waveform,
	}, nil
}

// EventEntity is one digital-event "reason" byte observed during ingest.
type EventEntity struct {
	parser     *nsfile.EventParser
	reason     uint8
	resolution float64
	idx        index
}

func (e *EventEntity) Type() EntityType { return EventEntityType }
func (e *EventEntity) ItemCount() int   { return e.idx.len() }

// Reason is the digital-event reason byte this entity represents.
func (e *EventEntity) Reason() uint8 { return e.reason }

func (e *EventEntity) TimeByIndex(i int) (float64, error) {
	ts, err := e.idx.timestampAt(i)
	if err != nil {
		return 0, err
	}
	return float64(ts) / e.resolution, nil
}

func (e *EventEntity) IndexByTime(t float64, mode SearchMode) (int, error) {
	return e.idx.search(uint32(math.Round(t*e.resolution)), mode)
}

// EventData returns the timestamp and digital inputs for the i-th
// event in this entity's index table.
func (e *EventEntity) EventData(i int) (EventData, error) {
	ordinal, err := e.idx.ordinalAt(i)
	if err != nil {
		return EventData{}, err
	}
	pkt, err := e.parser.DataPacketAt(ordinal)
	if err != nil {
		return EventData{}, err
	}
	return EventData{
		TimestampSeconds: float64(pkt.Timestamp) / e.resolution,
		DigitalInput:     pkt.DigitalInput,
		Input:            pkt.Input,
	}, nil
}

// NeuralEntity is one (electrode, unit class) pair observed in spike
// packets. It shares its parent SegmentEntity's packet stream but is
// restricted to ordinals whose packet's unit class matches — realized
// here as a pre-materialized filtered index built during ingest, not
// an on-demand filter over the parent.
type NeuralEntity struct {
	parent      *SegmentEntity
	electrodeID uint16
	unitClass   uint8
	resolution  float64
	idx         index
}

func (e *NeuralEntity) Type() EntityType { return NeuralEntityType }
func (e *NeuralEntity) ItemCount() int   { return e.idx.len() }

// ElectrodeID is the electrode id this entity represents.
func (e *NeuralEntity) ElectrodeID() uint16 { return e.electrodeID }

// UnitClass is the spike-sorting unit class this entity represents.
func (e *NeuralEntity) UnitClass() uint8 { return e.unitClass }

func (e *NeuralEntity) TimeByIndex(i int) (float64, error) {
	ts, err := e.idx.timestampAt(i)
	if err != nil {
		return 0, err
	}
	return float64(ts) / e.resolution, nil
}

func (e *NeuralEntity) IndexByTime(t float64, mode SearchMode) (int, error) {
	return e.idx.search(uint32(math.Round(t*e.resolution)), mode)
}

// SegmentData returns the timestamp, unit class, and waveform samples
// for the i-th spike in this entity's filtered index.
func (e *NeuralEntity) SegmentData(i int) (SegmentData, error) {
	ordinal, err := e.idx.ordinalAt(i)
	if err != nil {
		return SegmentData{}, err
	}
	pkt, err := e.parent.parser.DataPacketAt(ordinal)
	if err != nil {
		return SegmentData{}, err
	}
	return SegmentData{
		TimestampSeconds: float64(pkt.Timestamp) / e.resolution,
		UnitClass:        pkt.UnitClass,
		Waveform:         pkt.Waveform,
	}, nil
}

// analogReader abstracts the one method nsfile.ContinuousV1Parser and
// nsfile.ContinuousV2Parser have in common that AnalogEntity needs.
type analogReader interface {
	GetAnalogData(channel int, start int64, count int64) ([]float64, error)
}

// AnalogEntity is one channel of a continuous-sampling file.
type AnalogEntity struct {
	reader       analogReader
	electrodeID  uint32
	units        string
	label        string
	channelIndex int
	scale        float64
	sampleFreq   float64 // Hz
	itemCount    int64
}

func (e *AnalogEntity) Type() EntityType { return AnalogEntityType }
func (e *AnalogEntity) ItemCount() int   { return int(e.itemCount) }

// ElectrodeID is the electrode id of this channel.
func (e *AnalogEntity) ElectrodeID() uint32 { return e.electrodeID }

// Units is the physical units of the scaled samples this channel
// returns, e.g. "V" or "uV".
func (e *AnalogEntity) Units() string { return e.units }

// Label is the channel's label, or "" if none was declared.
func (e *AnalogEntity) Label() string { return e.label }

// SampleFreq is this channel's sampling frequency, in Hz.
func (e *AnalogEntity) SampleFreq() float64 { return e.sampleFreq }

func (e *AnalogEntity) TimeByIndex(i int) (float64, error) {
	if i < 0 || int64(i) >= e.itemCount {
		return 0, nsfile.NewErrorf(nsfile.BadIndex, "index %d out of range [0, %d)", i, e.itemCount)
	}
	return float64(i) / e.sampleFreq, nil
}

func (e *AnalogEntity) IndexByTime(t float64, mode SearchMode) (int, error) {
	exact := t * e.sampleFreq
	switch mode {
	case At:
		const epsilon = 1e-9
		i := int(math.Round(exact))
		if i < 0 || int64(i) >= e.itemCount || math.Abs(float64(i)-exact) > epsilon {
			return 0, nsfile.NewErrorf(nsfile.BadIndex, "no exact match for time %v", t)
		}
		return i, nil
	case Before:
		i := int(math.Floor(exact))
		if i < 0 {
			return 0, nsfile.NewErrorf(nsfile.BadIndex, "no index at or before time %v", t)
		}
		if int64(i) >= e.itemCount {
			i = int(e.itemCount) - 1
		}
		return i, nil
	case After:
		i := int(math.Ceil(exact))
		if int64(i) >= e.itemCount {
			return 0, nsfile.NewErrorf(nsfile.BadIndex, "no index at or after time %v", t)
		}
		if i < 0 {
			i = 0
		}
		return i, nil
	default:
		return 0, nsfile.NewErrorf(nsfile.LibError, "invalid search mode %d", mode)
	}
}

// GetAnalogData returns count contiguous samples starting at start,
// converted to physical units via this channel's scale factor. If the
// end of file is reached mid-range, a truncated buffer is returned
// without error.
func (e *AnalogEntity) GetAnalogData(start, count int64) ([]float64, error) {
	raw, err := e.reader.GetAnalogData(e.channelIndex, start, count)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v * e.scale
	}
	return out, nil
}
