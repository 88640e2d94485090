package bnk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

// SectionHandler interprets one kind of bank section.
// The chunk reads the section payload; sec carries the raw bytes for handlers
// that keep a view instead of decoding fields.
type SectionHandler interface {
	CanHandle(sectionID [4]byte) bool
	Decode(b *Bank, sec Section, ch *riff.Chunk) error
}

// SectionRegistry resolves sections to handlers.
type SectionRegistry struct {
	handlers []SectionHandler
}

// NewSectionRegistry returns a registry for the header, index and data
// sections. The hierarchy section is decoded on demand by Bank.Hierarchy.
func NewSectionRegistry() *SectionRegistry {
	return &SectionRegistry{
		handlers: []SectionHandler{
			&bankHeaderHandler{},
			&dataIndexHandler{},
			&dataHandler{},
		},
	}
}

// Register appends a handler to the registry.
func (r *SectionRegistry) Register(handler SectionHandler) {
	if r == nil || handler == nil {
		return
	}

	r.handlers = append(r.handlers, handler)
}

// Decode dispatches a section to the first matching handler.
func (r *SectionRegistry) Decode(b *Bank, sec Section) (bool, error) {
	if r == nil {
		return false, nil
	}

	for _, handler := range r.handlers {
		if !handler.CanHandle(sec.ID) {
			continue
		}

		err := handler.Decode(b, sec, sectionChunk(sec))
		if err != nil {
			return true, fmt.Errorf("section %q handler decode failed: %w", sec.ID, err)
		}

		return true, nil
	}

	return false, nil
}

func sectionChunk(sec Section) *riff.Chunk {
	return &riff.Chunk{
		ID:   sec.ID,
		Size: len(sec.Data),
		R:    bytes.NewReader(sec.Data),
	}
}

// readField reads dst from the chunk using the bank byte order.
// riff.Chunk.ReadBE decodes little endian, so other orders read through the
// chunk's io.Reader, which advances Pos.
func readField(ch *riff.Chunk, order binary.ByteOrder, dst any) error {
	if order == nil || order == binary.LittleEndian {
		return ch.ReadLE(dst)
	}

	if ch.IsFullyRead() {
		return io.EOF
	}

	return binary.Read(ch, order, dst)
}

// BankHeaderBytes is the size of the interpreted part of the BKHD section.
const BankHeaderBytes = 8

// BankHeader holds the interpreted fields of the BKHD section.
type BankHeader struct {
	Version uint32
	BankID  uint32
}

type bankHeaderHandler struct{}

func (h *bankHeaderHandler) CanHandle(sectionID [4]byte) bool {
	return sectionID == CIDBankHeader
}

func (h *bankHeaderHandler) Decode(b *Bank, sec Section, ch *riff.Chunk) error {
	if len(sec.Data) < BankHeaderBytes {
		return fmt.Errorf("%w: bank header holds %d bytes, need %d",
			ErrMalformedContainer, len(sec.Data), BankHeaderBytes)
	}

	var hdr BankHeader

	if err := readField(ch, b.Order, &hdr.Version); err != nil {
		return fmt.Errorf("failed to read bank version: %w", err)
	}

	if err := readField(ch, b.Order, &hdr.BankID); err != nil {
		return fmt.Errorf("failed to read bank ID: %w", err)
	}

	ch.Drain()

	b.Header = &hdr

	return nil
}

type dataIndexHandler struct{}

func (h *dataIndexHandler) CanHandle(sectionID [4]byte) bool {
	return sectionID == CIDDataIndex
}

// Decode only records the section. Range checks need the data section length,
// which may appear later in the bank.
func (h *dataIndexHandler) Decode(b *Bank, sec Section, _ *riff.Chunk) error {
	if b.indexSection != nil {
		return fmt.Errorf("%w: second %q section at position %d", ErrMalformedContainer, sec.ID, sec.Order)
	}

	b.indexSection = sec.Data

	return nil
}

type dataHandler struct{}

func (h *dataHandler) CanHandle(sectionID [4]byte) bool {
	return sectionID == CIDData
}

func (h *dataHandler) Decode(b *Bank, sec Section, _ *riff.Chunk) error {
	if b.Data != nil {
		return fmt.Errorf("%w: second %q section at position %d", ErrMalformedContainer, sec.ID, sec.Order)
	}

	b.Data = NewRawDataStore(sec.Data)

	return nil
}
