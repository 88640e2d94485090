package bnk

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VersionBand is an inclusive range of bank format versions.
type VersionBand struct {
	Min uint32
	Max uint32
}

// AllVersions matches every format version.
var AllVersions = VersionBand{Min: 0, Max: math.MaxUint32}

// Contains reports whether v is part of the band.
func (b VersionBand) Contains(v uint32) bool {
	return v >= b.Min && v <= b.Max
}

// ObjectDecoder decodes one object body. The body starts with the object ID.
type ObjectDecoder func(r *BodyReader) (Object, error)

// Layout is the field layout of one object type within a version band.
type Layout struct {
	Band VersionBand
	// Fixed is the minimum body length the layout reads.
	Fixed  int
	Decode ObjectDecoder
}

// NodeBaseSkipper advances r past the node base parameters that sit between
// the ID and the type-specific fields of container objects.
type NodeBaseSkipper func(r *BodyReader)

type nodeBaseRule struct {
	band VersionBand
	skip NodeBaseSkipper
}

// Layouts maps (type code, version band) pairs to decoders. The zero value is
// an empty table.
type Layouts struct {
	// Tolerant decodes a body that does not fit its layout as an
	// OpaqueObject instead of failing. The body must still hold an ID.
	Tolerant bool

	byType   map[ObjectType][]Layout
	nodeBase []nodeBaseRule
}

// NewLayouts returns an empty layout table.
func NewLayouts() *Layouts {
	return &Layouts{byType: make(map[ObjectType][]Layout)}
}

// Register adds a layout. When bands overlap, the layout registered last wins.
func (l *Layouts) Register(typ ObjectType, band VersionBand, fixed int, dec ObjectDecoder) {
	if l.byType == nil {
		l.byType = make(map[ObjectType][]Layout)
	}

	l.byType[typ] = append(l.byType[typ], Layout{Band: band, Fixed: fixed, Decode: dec})
}

// Lookup returns the layout used for typ at the passed format version.
func (l *Layouts) Lookup(typ ObjectType, version uint32) (Layout, bool) {
	candidates := l.byType[typ]
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Band.Contains(version) {
			return candidates[i], true
		}
	}

	return Layout{}, false
}

// RegisterNodeBase sets the node base skipper used by container decoders
// within band. When bands overlap, the skipper registered last wins.
func (l *Layouts) RegisterNodeBase(band VersionBand, skip NodeBaseSkipper) {
	l.nodeBase = append(l.nodeBase, nodeBaseRule{band: band, skip: skip})
}

func (l *Layouts) nodeBaseFor(version uint32) NodeBaseSkipper {
	for i := len(l.nodeBase) - 1; i >= 0; i-- {
		if l.nodeBase[i].band.Contains(version) {
			return l.nodeBase[i].skip
		}
	}

	return nil
}

// forVersion resolves the table for a single format version.
func (l *Layouts) forVersion(version uint32) map[ObjectType]Layout {
	out := make(map[ObjectType]Layout, len(l.byType))
	for typ := range l.byType {
		if layout, ok := l.Lookup(typ, version); ok {
			out[typ] = layout
		}
	}

	return out
}

// DefaultLayouts returns the built-in layout table. The bands follow the
// format revisions in which the decoded fields changed width.
func DefaultLayouts() *Layouts {
	l := NewLayouts()

	l.Register(TypeEvent, VersionBand{0, 122}, 8, decodeEvent(false))
	l.Register(TypeEvent, VersionBand{123, math.MaxUint32}, 5, decodeEvent(true))

	l.Register(TypeAction, AllVersions, 10, decodeAction)

	l.Register(TypeSound, VersionBand{0, 88}, 16, decodeSound(true))
	l.Register(TypeSound, VersionBand{89, math.MaxUint32}, 13, decodeSound(false))

	randomSequenceBands := []struct {
		band   VersionBand
		layout randomSequenceLayout
	}{
		{VersionBand{0, 38}, randomSequenceLayout{intTransitions: true, byteWeights: true}},
		{VersionBand{39, 56}, randomSequenceLayout{shortPlaylistCount: true, byteWeights: true}},
		{VersionBand{57, 72}, randomSequenceLayout{shortPlaylistCount: true}},
		{VersionBand{73, 89}, randomSequenceLayout{shortPlaylistCount: true, loopMods: true}},
		{VersionBand{90, math.MaxUint32}, randomSequenceLayout{shortPlaylistCount: true, loopMods: true, packedFlags: true}},
	}
	for _, b := range randomSequenceBands {
		l.Register(TypeRandomSequence, b.band, b.layout.fixed(), b.layout.decode)
	}

	l.Register(TypeSwitch, AllVersions, 22, decodeSwitch)
	l.Register(TypeActorMixer, AllVersions, 8, decodeActorMixer)
	l.Register(TypeLayer, AllVersions, 12, decodeLayer)

	for _, typ := range []ObjectType{
		TypeState, TypeBus, TypeMusicSegment, TypeMusicTrack, TypeMusicSwitch,
		TypeMusicRandomSequence, TypeAttenuation, TypeDialogueEvent, TypeFxShareSet,
		TypeFxCustom, TypeAuxBus, TypeLFO, TypeEnvelope, TypeAudioDevice, TypeTimeMod,
	} {
		l.Register(typ, AllVersions, 4, decodeOpaque)
	}

	return l
}

// BodyReader reads fields from an object body. The first out-of-range read
// records ErrUnderflowInObjectBody; later reads return zero values.
type BodyReader struct {
	buf      []byte
	pos      int
	typ      ObjectType
	order    binary.ByteOrder
	err      error
	nodeBase NodeBaseSkipper
}

// NewBodyReader returns a reader over body.
func NewBodyReader(body []byte, typ ObjectType, order binary.ByteOrder) *BodyReader {
	return &BodyReader{buf: body, typ: typ, order: order}
}

func (r *BodyReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 || len(r.buf)-r.pos < n {
		r.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, body holds %d",
			ErrUnderflowInObjectBody, r.typ, n, r.pos, len(r.buf))
		return nil
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b
}

func (r *BodyReader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}

	return b[0]
}

func (r *BodyReader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}

	return r.order.Uint16(b)
}

func (r *BodyReader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}

	return r.order.Uint32(b)
}

func (r *BodyReader) I16() int16 { return int16(r.U16()) }
func (r *BodyReader) I32() int32 { return int32(r.U32()) }

func (r *BodyReader) F32() float32 {
	return math.Float32frombits(r.U32())
}

// Varint reads a count stored as 7-bit groups, most significant group first,
// with the high bit set on every byte but the last.
func (r *BodyReader) Varint() uint32 {
	var value uint32

	for i := 0; i < 5; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}

		value = value<<7 | uint32(b[0]&0x7F)
		if b[0]&0x80 == 0 {
			return value
		}
	}

	if r.err == nil {
		r.err = fmt.Errorf("%w: %s count varint longer than 5 bytes at offset %d",
			ErrMalformedContainer, r.typ, r.pos)
	}

	return 0
}

// IDs reads n 32-bit IDs.
func (r *BodyReader) IDs(n uint32) []uint32 {
	if r.err != nil {
		return nil
	}

	if uint64(n)*4 > uint64(len(r.buf)-r.pos) {
		r.err = fmt.Errorf("%w: %s lists %d IDs at offset %d, body holds %d bytes",
			ErrUnderflowInObjectBody, r.typ, n, r.pos, len(r.buf))
		return nil
	}

	out := make([]uint32, n)
	for i := range out {
		out[i] = r.U32()
	}

	return out
}

// Skip discards n bytes.
func (r *BodyReader) Skip(n int) {
	r.take(n)
}

// Pos returns the offset of the next read.
func (r *BodyReader) Pos() int {
	return r.pos
}

// Len returns the body length.
func (r *BodyReader) Len() int {
	return len(r.buf)
}

// NodeBase skips the node base parameters when the layout table defines a
// skipper for the format version.
func (r *BodyReader) NodeBase() {
	if r.nodeBase != nil && r.err == nil {
		r.nodeBase(r)
	}
}

// Rest returns the unread part of the body.
func (r *BodyReader) Rest() []byte {
	if r.err != nil {
		return nil
	}

	return r.buf[r.pos:]
}

// Err returns the first read error.
func (r *BodyReader) Err() error {
	return r.err
}

func (r *BodyReader) finish(obj Object) (Object, error) {
	if r.err != nil {
		return nil, fmt.Errorf("object %d: %w", obj.ObjectID(), r.err)
	}

	return obj, nil
}

func decodeEvent(varintCount bool) ObjectDecoder {
	return func(r *BodyReader) (Object, error) {
		ev := &Event{ID: r.U32()}

		var count uint32
		if varintCount {
			count = r.Varint()
		} else {
			count = r.U32()
		}

		ev.Actions = r.IDs(count)

		return r.finish(ev)
	}
}

func decodeAction(r *BodyReader) (Object, error) {
	a := &Action{ID: r.U32()}
	a.Type = r.U16()
	a.Target = r.U32()

	return r.finish(a)
}

// decodeSound reads the source block of a sound. The stream type shrank from
// 32 to 8 bits after format version 88.
func decodeSound(wideStreamType bool) ObjectDecoder {
	return func(r *BodyReader) (Object, error) {
		s := &Sound{ID: r.U32()}
		s.PluginID = r.U32()

		if wideStreamType {
			s.StreamType = r.U32()
		} else {
			s.StreamType = uint32(r.U8())
		}

		s.SourceID = r.U32()

		return r.finish(s)
	}
}

type randomSequenceLayout struct {
	// transitions are integers up to version 38, floats after
	intTransitions bool
	// the playlist count is 16-bit after version 38
	shortPlaylistCount bool
	// weights are single bytes up to version 56
	byteWeights bool
	// loop modulation range added after version 72
	loopMods bool
	// five flag bytes were packed into a bit field after version 89
	packedFlags bool
}

func (l randomSequenceLayout) fixed() int {
	n := 4 + 2 + 12 + 2 + 3 + 4
	if l.loopMods {
		n += 4
	}

	if l.packedFlags {
		n++
	} else {
		n += 5
	}

	if l.shortPlaylistCount {
		n += 2
	} else {
		n += 4
	}

	return n
}

func (l randomSequenceLayout) decode(r *BodyReader) (Object, error) {
	c := &Container{ID: r.U32(), Type: TypeRandomSequence}
	r.NodeBase()

	p := &PlaybackSettings{}

	p.LoopCount = r.I16()
	if l.loopMods {
		p.LoopModMin = r.I16()
		p.LoopModMax = r.I16()
	}

	if l.intTransitions {
		p.TransitionTime = float32(r.I32())
		p.TransitionModMin = float32(r.I32())
		p.TransitionModMax = float32(r.I32())
	} else {
		p.TransitionTime = r.F32()
		p.TransitionModMin = r.F32()
		p.TransitionModMax = r.F32()
	}

	p.AvoidRepeatCount = r.U16()
	p.TransitionMode = r.U8()
	p.RandomMode = r.U8()
	p.Mode = r.U8()

	if l.packedFlags {
		bits := r.U8()
		p.Flags = PlaylistFlags{
			UsingWeight:     bits&(1<<0) != 0,
			ResetPlaylist:   bits&(1<<1) != 0,
			RestartBackward: bits&(1<<2) != 0,
			Continuous:      bits&(1<<3) != 0,
			Global:          bits&(1<<4) != 0,
		}
	} else {
		p.Flags = PlaylistFlags{
			UsingWeight:     r.U8() != 0,
			ResetPlaylist:   r.U8() != 0,
			RestartBackward: r.U8() != 0,
			Continuous:      r.U8() != 0,
			Global:          r.U8() != 0,
		}
	}

	c.Playback = p

	c.Kind = ContainerRandom
	if p.Mode == 1 {
		c.Kind = ContainerSequence
	}

	c.Children = r.IDs(r.U32())

	var count uint32
	if l.shortPlaylistCount {
		count = uint32(r.U16())
	} else {
		count = r.U32()
	}

	for i := uint32(0); i < count && r.Err() == nil; i++ {
		item := PlaylistItem{ID: r.U32()}
		if l.byteWeights {
			item.Weight = int32(r.U8())
		} else {
			item.Weight = r.I32()
		}

		c.Playlist = append(c.Playlist, item)
	}

	return r.finish(c)
}

func decodeSwitch(r *BodyReader) (Object, error) {
	c := &Container{ID: r.U32(), Type: TypeSwitch, Kind: ContainerSwitch}
	r.NodeBase()

	_ = r.U8() // group type: switch or state
	c.GroupID = r.U32()
	c.DefaultSwitch = r.U32()
	_ = r.U8() // continuous validation

	c.Children = r.IDs(r.U32())

	groups := r.U32()
	for i := uint32(0); i < groups && r.Err() == nil; i++ {
		sw := SwitchGroup{SwitchID: r.U32()}
		sw.Nodes = r.IDs(r.U32())
		c.Switches = append(c.Switches, sw)
	}

	return r.finish(c)
}

func decodeActorMixer(r *BodyReader) (Object, error) {
	c := &Container{ID: r.U32(), Type: TypeActorMixer, Kind: ContainerActorMixer}
	r.NodeBase()
	c.Children = r.IDs(r.U32())

	return r.finish(c)
}

func decodeLayer(r *BodyReader) (Object, error) {
	c := &Container{ID: r.U32(), Type: TypeLayer, Kind: ContainerBlend}
	r.NodeBase()
	c.Children = r.IDs(r.U32())

	layers := r.U32()
	for i := uint32(0); i < layers && r.Err() == nil; i++ {
		l := Layer{ID: r.U32()}
		l.RTPC = r.U32()
		l.Children = r.IDs(r.U32())
		c.Layers = append(c.Layers, l)
	}

	return r.finish(c)
}

func decodeOpaque(r *BodyReader) (Object, error) {
	o := &OpaqueObject{ID: r.U32(), Type: r.typ}
	o.Body = r.Rest()

	return r.finish(o)
}
