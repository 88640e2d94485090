package bnk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"
)

const testVersion = 134

var errSectionExceedsBank = errors.New("section exceeds bank size")

type testSection struct {
	id   string
	data []byte
}

type testPayload struct {
	id   uint32
	data []byte
}

// parseTestSections splits a serialized bank without using the package
// decoder, so round-trip tests do not check the decoder against itself.
func parseTestSections(data []byte, order binary.ByteOrder) ([]testSection, error) {
	offset := 0
	if len(data) >= EnvelopeBytes && string(data[0:4]) == "AKBK" {
		offset = EnvelopeBytes
	}

	var sections []testSection

	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := order.Uint32(data[offset+4 : offset+8])
		offset += 8

		end := offset + int(size)
		if end > len(data) {
			return nil, fmt.Errorf("%w: %q", errSectionExceedsBank, id)
		}

		sections = append(sections, testSection{id: id, data: append([]byte(nil), data[offset:end]...)})
		offset = end
	}

	return sections, nil
}

func findTestSection(sections []testSection, id string) (*testSection, int) {
	for i := range sections {
		if sections[i].id == id {
			return &sections[i], i
		}
	}

	return nil, -1
}

// writer appends fixed width fields in one byte order.
type writer struct {
	order binary.ByteOrder
	buf   []byte
}

func newWriter(order binary.ByteOrder) *writer {
	return &writer{order: order}
}

func (w *writer) u8(v uint8) *writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *writer) u16(v uint16) *writer {
	var b [2]byte
	w.order.PutUint16(b[:], v)

	return w.raw(b[:])
}

func (w *writer) u32(v uint32) *writer {
	var b [4]byte
	w.order.PutUint32(b[:], v)

	return w.raw(b[:])
}

func (w *writer) f32(v float32) *writer {
	return w.u32(math.Float32bits(v))
}

func (w *writer) raw(b []byte) *writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *writer) ids(ids ...uint32) *writer {
	for _, id := range ids {
		w.u32(id)
	}

	return w
}

// varint writes 7-bit groups, most significant first.
func (w *writer) varint(v uint32) *writer {
	var groups []byte
	for {
		groups = append([]byte{byte(v & 0x7F)}, groups...)
		v >>= 7

		if v == 0 {
			break
		}
	}

	for i := 0; i < len(groups)-1; i++ {
		groups[i] |= 0x80
	}

	return w.raw(groups)
}

func (w *writer) section(id string, data []byte) *writer {
	w.raw([]byte(id))
	w.u32(uint32(len(data)))

	return w.raw(data)
}

func (w *writer) bytes() []byte {
	return w.buf
}

// bankFixture describes a bank to serialize.
type bankFixture struct {
	order    binary.ByteOrder
	version  uint32
	bankID   uint32
	envelope bool
	// alignment pads payloads inside DATA; zero packs them.
	alignment int
	payloads  []testPayload
	hirc      []byte
	extra     []testSection
}

func (s bankFixture) byteOrder() binary.ByteOrder {
	if s.order == nil {
		return binary.LittleEndian
	}

	return s.order
}

func (s bankFixture) build() []byte {
	order := s.byteOrder()

	version := s.version
	if version == 0 {
		version = testVersion
	}

	body := newWriter(order)
	body.section("BKHD", newWriter(order).u32(version).u32(s.bankID).u32(0).bytes())

	if len(s.payloads) > 0 {
		index := newWriter(order)
		data := newWriter(order)

		for _, p := range s.payloads {
			index.u32(p.id).u32(uint32(len(data.buf))).u32(uint32(len(p.data)))
			data.raw(p.data)

			if s.alignment > 1 {
				for len(data.buf)%s.alignment != 0 {
					data.u8(0)
				}
			}
		}

		body.section("DIDX", index.bytes())
		body.section("DATA", data.bytes())
	}

	if s.hirc != nil {
		body.section("HIRC", s.hirc)
	}

	for _, sec := range s.extra {
		body.section(sec.id, sec.data)
	}

	if !s.envelope {
		return body.bytes()
	}

	out := newWriter(order).raw([]byte("AKBK")).u32(uint32(len(body.buf))).u32(0)

	return out.raw(body.bytes()).bytes()
}

func decodeFixture(t *testing.T, s bankFixture) *Bank {
	t.Helper()

	b, err := Decode(s.build(), &Options{Order: s.byteOrder()})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	return b
}

// hirc serializes hierarchy objects for a format version.
type hirc struct {
	order   binary.ByteOrder
	version uint32
	count   uint32
	objects *writer
}

func newHirc(order binary.ByteOrder, version uint32) *hirc {
	return &hirc{order: order, version: version, objects: newWriter(order)}
}

func (h *hirc) object(typ ObjectType, body []byte) *hirc {
	if h.version <= 48 {
		h.objects.u32(uint32(typ))
	} else {
		h.objects.u8(uint8(typ))
	}

	h.objects.u32(uint32(len(body))).raw(body)
	h.count++

	return h
}

func (h *hirc) event(id uint32, actions ...uint32) *hirc {
	w := newWriter(h.order).u32(id)
	if h.version <= 122 {
		w.u32(uint32(len(actions)))
	} else {
		w.varint(uint32(len(actions)))
	}

	return h.object(TypeEvent, w.ids(actions...).bytes())
}

func (h *hirc) action(id uint32, typ uint16, target uint32) *hirc {
	return h.object(TypeAction, newWriter(h.order).u32(id).u16(typ).u32(target).bytes())
}

func (h *hirc) sound(id, source uint32) *hirc {
	w := newWriter(h.order).u32(id).u32(0x00040001)
	if h.version <= 88 {
		w.u32(0)
	} else {
		w.u8(0)
	}

	return h.object(TypeSound, w.u32(source).bytes())
}

// randomSequence writes a random (mode 0) or sequence (mode 1) container.
func (h *hirc) randomSequence(id uint32, mode uint8, children []uint32, playlist []PlaylistItem) *hirc {
	v := h.version
	w := newWriter(h.order).u32(id)

	w.u16(0xFFFF) // loop count
	if v > 72 {
		w.u16(1).u16(2)
	}

	if v <= 38 {
		w.u32(1000).u32(0).u32(0)
	} else {
		w.f32(1000).f32(0).f32(0)
	}

	w.u16(1).u8(0).u8(1).u8(mode)

	if v <= 89 {
		w.u8(1).u8(0).u8(0).u8(1).u8(0)
	} else {
		w.u8(0b01001)
	}

	w.u32(uint32(len(children))).ids(children...)

	if v <= 38 {
		w.u32(uint32(len(playlist)))
	} else {
		w.u16(uint16(len(playlist)))
	}

	for _, item := range playlist {
		w.u32(item.ID)
		if v <= 56 {
			w.u8(uint8(item.Weight))
		} else {
			w.u32(uint32(item.Weight))
		}
	}

	return h.object(TypeRandomSequence, w.bytes())
}

func (h *hirc) switchContainer(id, group, def uint32, children []uint32, switches []SwitchGroup) *hirc {
	w := newWriter(h.order).u32(id).u8(0).u32(group).u32(def).u8(1)
	w.u32(uint32(len(children))).ids(children...)
	w.u32(uint32(len(switches)))

	for _, sw := range switches {
		w.u32(sw.SwitchID).u32(uint32(len(sw.Nodes))).ids(sw.Nodes...)
	}

	return h.object(TypeSwitch, w.bytes())
}

func (h *hirc) layerContainer(id uint32, children []uint32, layers []Layer) *hirc {
	w := newWriter(h.order).u32(id)
	w.u32(uint32(len(children))).ids(children...)
	w.u32(uint32(len(layers)))

	for _, l := range layers {
		w.u32(l.ID).u32(l.RTPC).u32(uint32(len(l.Children))).ids(l.Children...)
	}

	return h.object(TypeLayer, w.bytes())
}

func (h *hirc) actorMixer(id uint32, children ...uint32) *hirc {
	w := newWriter(h.order).u32(id).u32(uint32(len(children))).ids(children...)
	return h.object(TypeActorMixer, w.bytes())
}

func (h *hirc) opaque(typ ObjectType, id uint32, rest []byte) *hirc {
	return h.object(typ, newWriter(h.order).u32(id).raw(rest).bytes())
}

func (h *hirc) bytes() []byte {
	return newWriter(h.order).u32(h.count).raw(h.objects.bytes()).bytes()
}

const playAction = 0x0403
