package bnk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ObjectType is the type code of a hierarchy object.
type ObjectType uint32

const (
	TypeState               ObjectType = 1
	TypeSound               ObjectType = 2
	TypeAction              ObjectType = 3
	TypeEvent               ObjectType = 4
	TypeRandomSequence      ObjectType = 5
	TypeSwitch              ObjectType = 6
	TypeActorMixer          ObjectType = 7
	TypeBus                 ObjectType = 8
	TypeLayer               ObjectType = 9
	TypeMusicSegment        ObjectType = 10
	TypeMusicTrack          ObjectType = 11
	TypeMusicSwitch         ObjectType = 12
	TypeMusicRandomSequence ObjectType = 13
	TypeAttenuation         ObjectType = 14
	TypeDialogueEvent       ObjectType = 15
	TypeFxShareSet          ObjectType = 16
	TypeFxCustom            ObjectType = 17
	TypeAuxBus              ObjectType = 18
	TypeLFO                 ObjectType = 19
	TypeEnvelope            ObjectType = 20
	TypeAudioDevice         ObjectType = 21
	TypeTimeMod             ObjectType = 22
)

var objectTypeNames = map[ObjectType]string{
	TypeState:               "state",
	TypeSound:               "sound",
	TypeAction:              "action",
	TypeEvent:               "event",
	TypeRandomSequence:      "random/sequence container",
	TypeSwitch:              "switch container",
	TypeActorMixer:          "actor-mixer",
	TypeBus:                 "bus",
	TypeLayer:               "layer container",
	TypeMusicSegment:        "music segment",
	TypeMusicTrack:          "music track",
	TypeMusicSwitch:         "music switch",
	TypeMusicRandomSequence: "music random/sequence",
	TypeAttenuation:         "attenuation",
	TypeDialogueEvent:       "dialogue event",
	TypeFxShareSet:          "fx share set",
	TypeFxCustom:            "fx custom",
	TypeAuxBus:              "aux bus",
	TypeLFO:                 "lfo",
	TypeEnvelope:            "envelope",
	TypeAudioDevice:         "audio device",
	TypeTimeMod:             "time modulator",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("type %d", uint32(t))
}

// Object is a decoded hierarchy node.
type Object interface {
	ObjectID() uint32
	ObjectType() ObjectType
}

// Event triggers its actions in order.
type Event struct {
	ID      uint32
	Actions []uint32
}

func (e *Event) ObjectID() uint32       { return e.ID }
func (e *Event) ObjectType() ObjectType { return TypeEvent }

// ActionKind is the high byte of an action type.
type ActionKind uint8

const (
	ActionStop   ActionKind = 0x01
	ActionPause  ActionKind = 0x02
	ActionResume ActionKind = 0x03
	ActionPlay   ActionKind = 0x04
)

// Action applies a kind of operation to a target object.
type Action struct {
	ID uint32
	// Type packs the kind in the high byte and the scope in the low byte.
	// 0x0403 is a play action.
	Type   uint16
	Target uint32
}

func (a *Action) ObjectID() uint32       { return a.ID }
func (a *Action) ObjectType() ObjectType { return TypeAction }

// Kind returns the operation performed by the action.
func (a *Action) Kind() ActionKind {
	return ActionKind(a.Type >> 8)
}

// Scope returns the scope byte of the action type.
func (a *Action) Scope() uint8 {
	return uint8(a.Type)
}

// Sound is a leaf that plays exactly one payload.
type Sound struct {
	ID         uint32
	PluginID   uint32
	StreamType uint32
	// SourceID is the payload ID played by the sound.
	SourceID uint32
}

func (s *Sound) ObjectID() uint32       { return s.ID }
func (s *Sound) ObjectType() ObjectType { return TypeSound }

// ContainerKind distinguishes the playlist semantics of a container.
type ContainerKind int

const (
	ContainerRandom ContainerKind = iota
	ContainerSequence
	ContainerSwitch
	ContainerBlend
	ContainerActorMixer
)

func (k ContainerKind) String() string {
	switch k {
	case ContainerRandom:
		return "random"
	case ContainerSequence:
		return "sequence"
	case ContainerSwitch:
		return "switch"
	case ContainerBlend:
		return "blend"
	case ContainerActorMixer:
		return "actor-mixer"
	default:
		return fmt.Sprintf("kind %d", int(k))
	}
}

// PlaylistItem is one weighted playlist entry. Weights are kept as stored;
// they do not have to sum to anything.
type PlaylistItem struct {
	ID     uint32
	Weight int32
}

// SwitchGroup lists the nodes played for one switch or state value.
type SwitchGroup struct {
	SwitchID uint32
	Nodes    []uint32
}

// Layer is one layer of a blend container.
type Layer struct {
	ID       uint32
	RTPC     uint32
	Children []uint32
}

// PlaylistFlags are the playback flags of a random/sequence container.
type PlaylistFlags struct {
	UsingWeight     bool
	ResetPlaylist   bool
	RestartBackward bool
	Continuous      bool
	Global          bool
}

// PlaybackSettings holds the random/sequence container fields preceding the
// children list.
type PlaybackSettings struct {
	LoopCount        int16
	LoopModMin       int16
	LoopModMax       int16
	TransitionTime   float32
	TransitionModMin float32
	TransitionModMax float32
	AvoidRepeatCount uint16
	TransitionMode   uint8
	RandomMode       uint8
	Mode             uint8
	Flags            PlaylistFlags
}

// Container groups child objects.
type Container struct {
	ID       uint32
	Type     ObjectType
	Kind     ContainerKind
	Children []uint32
	Playlist []PlaylistItem
	Switches []SwitchGroup
	Layers   []Layer
	// GroupID and DefaultSwitch are only set for switch containers.
	GroupID       uint32
	DefaultSwitch uint32
	// Playback is only set for random/sequence containers.
	Playback *PlaybackSettings
}

func (c *Container) ObjectID() uint32       { return c.ID }
func (c *Container) ObjectType() ObjectType { return c.Type }

// Refs returns the IDs the container can play, in declared order: the
// playlist (or the children when the playlist is empty), then switch group
// nodes, then layer children. IDs may repeat.
func (c *Container) Refs() []uint32 {
	var refs []uint32

	if len(c.Playlist) > 0 {
		for _, item := range c.Playlist {
			refs = append(refs, item.ID)
		}
	} else {
		refs = append(refs, c.Children...)
	}

	for _, sw := range c.Switches {
		refs = append(refs, sw.Nodes...)
	}

	for _, l := range c.Layers {
		refs = append(refs, l.Children...)
	}

	return refs
}

// OpaqueObject is a recognised object that carries no payload references.
type OpaqueObject struct {
	ID   uint32
	Type ObjectType
	Body []byte
}

func (o *OpaqueObject) ObjectID() uint32       { return o.ID }
func (o *OpaqueObject) ObjectType() ObjectType { return o.Type }

// Hierarchy is the decoded HIRC section. The zero value is an empty graph.
type Hierarchy struct {
	Objects map[uint32]Object
	// Order lists object IDs in declaration order.
	Order []uint32
	// Events lists event IDs in declaration order.
	Events []uint32
	// Degraded lists objects a tolerant decode kept as OpaqueObject because
	// their body did not fit the layout.
	Degraded []uint32
}

func newHierarchy() *Hierarchy {
	return &Hierarchy{Objects: make(map[uint32]Object)}
}

// NewHierarchy builds a graph from already decoded objects.
func NewHierarchy(objects ...Object) (*Hierarchy, error) {
	h := newHierarchy()
	for _, obj := range objects {
		if err := h.Add(obj); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Add inserts an object. IDs must be unique across the graph.
func (h *Hierarchy) Add(obj Object) error {
	if h.Objects == nil {
		h.Objects = make(map[uint32]Object)
	}

	id := obj.ObjectID()
	if prev, ok := h.Objects[id]; ok {
		return fmt.Errorf("%w: hierarchy object %d declared as %s and %s",
			ErrDuplicateID, id, prev.ObjectType(), obj.ObjectType())
	}

	h.Objects[id] = obj
	h.Order = append(h.Order, id)

	if obj.ObjectType() == TypeEvent {
		h.Events = append(h.Events, id)
	}

	return nil
}

// Object returns the object with the passed ID.
func (h *Hierarchy) Object(id uint32) (Object, bool) {
	obj, ok := h.Objects[id]
	return obj, ok
}

// Len returns the number of objects in the graph.
func (h *Hierarchy) Len() int {
	return len(h.Objects)
}

// CountByType returns how many objects of each type the graph holds.
func (h *Hierarchy) CountByType() map[ObjectType]int {
	out := make(map[ObjectType]int)
	for _, obj := range h.Objects {
		out[obj.ObjectType()]++
	}

	return out
}

// DecodeHierarchy decodes a HIRC section. The layout of every object is chosen
// from layouts by its type code and the format version; nil layouts use
// DefaultLayouts().
func DecodeHierarchy(section []byte, version uint32, order binary.ByteOrder, layouts *Layouts) (*Hierarchy, error) {
	if layouts == nil {
		layouts = DefaultLayouts()
	}

	if len(section) < 4 {
		return nil, fmt.Errorf("%w: %q holds %d bytes, no object count",
			ErrMalformedContainer, CIDHierarchy, len(section))
	}

	table := layouts.forVersion(version)
	nodeBase := layouts.nodeBaseFor(version)
	count := order.Uint32(section[0:4])
	h := newHierarchy()

	headerSize := objectHeaderSize(version)
	pos := 4

	for i := uint32(0); i < count; i++ {
		if len(section)-pos < headerSize {
			return nil, fmt.Errorf("%w: object %d of %d has no header at offset %d",
				ErrMalformedContainer, i, count, pos)
		}

		typ, length := readObjectHeader(section[pos:], version, order)
		pos += headerSize

		if uint64(length) > uint64(len(section)-pos) {
			return nil, fmt.Errorf("%w: %s object at offset %d declares %d bytes, %d remain",
				ErrMalformedContainer, typ, pos-headerSize, length, len(section)-pos)
		}

		body := section[pos : pos+int(length) : pos+int(length)]
		pos += int(length)

		layout, ok := table[typ]
		if !ok {
			return nil, fmt.Errorf("%w: type code %d at offset %d (format version %d)",
				ErrUnknownObjectType, uint32(typ), pos-int(length)-headerSize, version)
		}

		obj, err := decodeObject(body, typ, order, layout, nodeBase)
		if err != nil {
			if !layouts.Tolerant || !errors.Is(err, ErrUnderflowInObjectBody) || len(body) < 4 {
				return nil, err
			}

			obj = &OpaqueObject{ID: order.Uint32(body[0:4]), Type: typ, Body: body[4:]}
			h.Degraded = append(h.Degraded, obj.ObjectID())
		}

		if err := h.Add(obj); err != nil {
			return nil, err
		}
	}

	return h, nil
}

func decodeObject(body []byte, typ ObjectType, order binary.ByteOrder, layout Layout, nodeBase NodeBaseSkipper) (Object, error) {
	if len(body) < layout.Fixed {
		return nil, fmt.Errorf("%w: %s body holds %d bytes, layout needs %d",
			ErrUnderflowInObjectBody, typ, len(body), layout.Fixed)
	}

	r := NewBodyReader(body, typ, order)
	if isContainerType(typ) {
		r.nodeBase = nodeBase
	}

	return layout.Decode(r)
}

func isContainerType(typ ObjectType) bool {
	switch typ {
	case TypeRandomSequence, TypeSwitch, TypeActorMixer, TypeLayer:
		return true
	}

	return false
}

// objectHeaderSize returns the size of a type code plus body length. Type
// codes were 32-bit up to format version 48.
func objectHeaderSize(version uint32) int {
	if version <= 48 {
		return 8
	}

	return 5
}

func readObjectHeader(b []byte, version uint32, order binary.ByteOrder) (ObjectType, uint32) {
	if version <= 48 {
		return ObjectType(order.Uint32(b[0:4])), order.Uint32(b[4:8])
	}

	return ObjectType(b[0]), order.Uint32(b[1:5])
}
