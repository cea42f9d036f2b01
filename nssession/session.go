// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nssession

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rippleneuro/nsfile/nsfile"
)

// FileHandle associates an opened sibling file with its format-
// specific parser and the observed time span of its contents.
type FileHandle struct {
	Parser   nsfile.Parser
	Path     string
	TimeSpan float64 // seconds
}

// Extension returns this file's extension, e.g. "nev" or "ns2".
func (h *FileHandle) Extension() string {
	return strings.TrimPrefix(filepath.Ext(h.Path), ".")
}

// FileInfo is the session-wide metadata equivalent of the Neuroshare
// ns_FILEINFO struct.
type FileInfo struct {
	FileType            string
	EntityCount         int
	TimestampResolution float64
	TimeSpan            float64
	AppName             string
	OriginTime          time.Time
	Comment             string
}

// Option configures Open.
type Option func(*options)

type options struct {
	singleFile bool
}

// WithSingleFile disables sibling discovery: only the exact path
// given to Open is processed.
func WithSingleFile() Option {
	return func(o *options) { o.singleFile = true }
}

// Session owns an ordered sequence of file handles (one per sibling)
// and a single ordered sequence of entities assembled from all of
// them. A Session is immutable after construction; Close releases all
// underlying file handles.
type Session struct {
	Files    []*FileHandle
	Entities []Entity

	fileType            string
	timestampResolution float64
	timeSpan            float64
	appName             string
	originTime          time.Time
	comment             string
}

// Open discovers sibling files from path, parses all of them, and
// builds the session's entity list. path should name the event file
// (".nev"); siblings are discovered by globbing path's basename
// against ".nev" and ".ns[1-9]", unless WithSingleFile is given.
func Open(path string, opts ...Option) (_ *Session, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fileList, err := discover(path, o.singleFile)
	if err != nil {
		return nil, err
	}

	s := &Session{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var segEvt []Entity
	var analog []Entity
	var neural []*NeuralEntity

	for _, p := range fileList {
		parser, openErr := nsfile.Open(p)
		if openErr != nil {
			return nil, openErr
		}
		handle := &FileHandle{Parser: parser, Path: p}
		s.Files = append(s.Files, handle)

		switch parser.Format() {
		case nsfile.EventFile:
			ev := parser.(*nsfile.EventParser)
			se, ee, ne, timeSpan, ingestErr := ingestEvent(ev)
			if ingestErr != nil {
				return nil, ingestErr
			}
			segEvt = append(segEvt, se...)
			segEvt = append(segEvt, ee...)
			neural = append(neural, ne...)
			ev.SetTimeSpan(timeSpan)
			handle.TimeSpan = timeSpan

			hdr := ev.BasicHeader()
			s.timestampResolution = ev.TimestampResolution()
			s.originTime = hdr.Origin
			s.appName = hdr.Application
			s.comment = hdr.Comment

		case nsfile.ContinuousV1:
			v1 := parser.(*nsfile.ContinuousV1Parser)
			analog = append(analog, ingestContinuousV1(v1)...)
			handle.TimeSpan = v1.TimeSpan()

		case nsfile.ContinuousV2:
			v2 := parser.(*nsfile.ContinuousV2Parser)
			analog = append(analog, ingestContinuousV2(v2)...)
			handle.TimeSpan = v2.TimeSpan()
		}

		if handle.TimeSpan > s.timeSpan {
			s.timeSpan = handle.TimeSpan
		}
	}

	s.Entities = reshapeEntities(segEvt, analog, neural)
	s.fileType = computeFileType(s.Files)
	return s, nil
}

// discover finds the sibling files for path.
func discover(path string, singleFile bool) ([]string, error) {
	if singleFile {
		if _, err := os.Stat(path); err != nil {
			return nil, nsfile.WrapError(nsfile.BadFile, err, "input file does not exist: "+path)
		}
		return []string{path}, nil
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	nevFiles, _ := filepath.Glob(base + ".nev")
	nsxFiles, _ := filepath.Glob(base + ".ns[1-9]")
	sort.Strings(nsxFiles)

	fileList := append(nevFiles, nsxFiles...)
	if len(fileList) == 0 {
		return nil, nsfile.NewErrorf(nsfile.BadFile,
			"could not find any .nev or .nsx files matching %s", path)
	}
	return fileList, nil
}

// ingestEvent enumerates an event file's extended headers to discover
// segment entities, then its data packets to populate segment, event,
// and neural entities' index tables.
func ingestEvent(p *nsfile.EventParser) (segments, events []Entity, neurals []*NeuralEntity, timeSpan float64, err error) {
	resolution := p.TimestampResolution()

	bySegElectrode := map[uint16]*SegmentEntity{}
	bufferedLabels := map[uint16]string{}

	headers := p.ExtHeaders()
	for headers.Next() {
		h := headers.Header
		switch {
		case h.Neuevwav != nil:
			w := h.Neuevwav
			seg := &SegmentEntity{parser: p, electrodeID: w.PacketID, resolution: resolution}
			segments = append(segments, seg)
			bySegElectrode[w.PacketID] = seg
		case h.Neuevlbl != nil:
			l := h.Neuevlbl
			id := uint16(l.PacketID)
			if seg, ok := bySegElectrode[id]; ok {
				seg.label = l.Label
			} else {
				bufferedLabels[id] = l.Label
			}
			// NEUEVFLT and DIGLABEL headers carry filter/label
			// metadata this model does not surface as distinct
			// entity attributes; event entities are discovered
			// purely from the data packet stream since DIGLABEL
			// headers are often absent.
		}
	}
	if err := headers.Err(); err != nil {
		return nil, nil, nil, 0, err
	}
	for id, label := range bufferedLabels {
		if seg, ok := bySegElectrode[id]; ok {
			seg.label = label
		}
	}

	byReason := map[uint8]*EventEntity{}
	type neuralKey struct {
		electrode uint16
		unitClass uint8
	}
	byNeural := map[neuralKey]*NeuralEntity{}

	var lastTimestamp uint32
	var sawPacket bool

	packets := p.DataPackets()
	for packets.Next() {
		pkt := packets.Packet
		lastTimestamp = pkt.Timestamp
		sawPacket = true

		if pkt.Kind == nsfile.DigitalEventPacket {
			ee, ok := byReason[pkt.Reason]
			if !ok {
				ee = &EventEntity{parser: p, reason: pkt.Reason, resolution: resolution}
				events = append(events, ee)
				byReason[pkt.Reason] = ee
			}
			ee.idx.append(pkt.Timestamp, packets.Ord)
			continue
		}

		seg, ok := bySegElectrode[pkt.PacketID]
		if !ok {
			return nil, nil, nil, 0, nsfile.NewErrorf(nsfile.BadFile,
				"spike packet references undeclared electrode %d", pkt.PacketID)
		}
		seg.idx.append(pkt.Timestamp, packets.Ord)

		key := neuralKey{electrode: seg.electrodeID, unitClass: pkt.UnitClass}
		ne, ok := byNeural[key]
		if !ok {
			ne = &NeuralEntity{parent: seg, electrodeID: seg.electrodeID, unitClass: pkt.UnitClass, resolution: resolution}
			neurals = append(neurals, ne)
			byNeural[key] = ne
		}
		ne.idx.append(pkt.Timestamp, packets.Ord)
	}
	if err := packets.Err(); err != nil {
		return nil, nil, nil, 0, err
	}

	if sawPacket {
		timeSpan = float64(lastTimestamp) / resolution
	}

	sort.Slice(neurals, func(i, j int) bool {
		if neurals[i].electrodeID != neurals[j].electrodeID {
			return neurals[i].electrodeID < neurals[j].electrodeID
		}
		return neurals[i].unitClass < neurals[j].unitClass
	})

	return segments, events, neurals, timeSpan, nil
}

func ingestContinuousV1(p *nsfile.ContinuousV1Parser) []Entity {
	hdr := p.BasicHeader()
	freq := p.TimestampResolution() / float64(hdr.Period)
	out := make([]Entity, 0, len(hdr.ChannelID))
	for i, electrodeID := range hdr.ChannelID {
		out = append(out, &AnalogEntity{
			reader:       p,
			electrodeID:  electrodeID,
			units:        p.Units(),
			channelIndex: i,
			scale:        p.Scale(),
			sampleFreq:   freq,
			itemCount:    p.NDataPoints(),
		})
	}
	return out
}

func ingestContinuousV2(p *nsfile.ContinuousV2Parser) []Entity {
	hdr := p.BasicHeader()
	freq := float64(hdr.TimestampResolution) / float64(hdr.Period)
	ccs := p.CCHeaders()
	out := make([]Entity, 0, len(ccs))
	for i, cc := range ccs {
		out = append(out, &AnalogEntity{
			reader:       p,
			electrodeID:  uint32(cc.ElectrodeID),
			units:        cc.Units,
			label:        cc.ElectrodeLabel,
			channelIndex: i,
			scale:        cc.Scale(),
			sampleFreq:   freq,
			itemCount:    p.NDataPoints(),
		})
	}
	return out
}

// reshapeEntities orders the session's entity list: segment/event
// entities first (discovery order), then analog entities grouped by
// ascending sample frequency, then neural entities sorted by
// (electrode_id, unit_class).
func reshapeEntities(segEvt, analog []Entity, neural []*NeuralEntity) []Entity {
	sorted := make([]Entity, len(analog))
	copy(sorted, analog)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].(*AnalogEntity).sampleFreq < sorted[j].(*AnalogEntity).sampleFreq
	})

	out := make([]Entity, 0, len(segEvt)+len(sorted)+len(neural))
	out = append(out, segEvt...)
	out = append(out, sorted...)
	for _, n := range neural {
		out = append(out, n)
	}
	return out
}

// computeFileType derives the session's FileType tag from which
// format families its files belong to.
func computeFileType(files []*FileHandle) string {
	hasEvent := false
	hasContinuous := false
	for _, f := range files {
		switch f.Parser.Format() {
		case nsfile.EventFile:
			hasEvent = true
		case nsfile.ContinuousV1, nsfile.ContinuousV2:
			hasContinuous = true
		}
	}
	switch {
	case hasEvent && hasContinuous:
		return "NEURALEV+ NEURAL"
	case hasEvent:
		return "NEURALEV"
	case hasContinuous:
		return "NEURAL"
	default:
		return ""
	}
}

// FileInfo returns the session-wide metadata equivalent of the
// Neuroshare ns_FILEINFO struct.
func (s *Session) FileInfo() FileInfo {
	return FileInfo{
		FileType:            s.fileType,
		EntityCount:         len(s.Entities),
		TimestampResolution: s.timestampResolution,
		TimeSpan:            s.timeSpan,
		AppName:             s.appName,
		OriginTime:          s.originTime,
		Comment:             s.comment,
	}
}

// HasFileType reports whether a sibling of the given format tag
// ("NEURALEV", "NEURALSG", "NEURALCD") was found.
func (s *Session) HasFileType(tag string) bool {
	for _, f := range s.Files {
		if f.Parser.Format().String() == tag {
			return true
		}
	}
	return false
}

// FileData returns the FileHandle with the given extension (e.g.
// "nev", "ns2"), or nil if none was found.
func (s *Session) FileData(ext string) *FileHandle {
	for _, f := range s.Files {
		if f.Extension() == ext {
			return f
		}
	}
	return nil
}

// EntityCount is the total number of entities in this session.
func (s *Session) EntityCount() int { return len(s.Entities) }

// Entity returns the entity at the given session-wide index.
func (s *Session) Entity(index int) (Entity, error) {
	if index < 0 || index >= len(s.Entities) {
		return nil, nsfile.NewErrorf(nsfile.BadEntity, "invalid entity index %d", index)
	}
	return s.Entities[index], nil
}

// EntitiesOfType returns every entity of the given type, in session order.
func (s *Session) EntitiesOfType(t EntityType) []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// Close releases all underlying file handles, in reverse-open order.
// If any Close call fails, the first error is returned, but all
// handles are still attempted.
func (s *Session) Close() error {
	var first error
	for i := len(s.Files) - 1; i >= 0; i-- {
		if err := s.Files[i].Parser.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
