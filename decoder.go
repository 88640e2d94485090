package bnk

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Options configures how a bank is decoded.
type Options struct {
	// Order is the byte order of every multi-byte field in the bank.
	// Defaults to little endian.
	Order binary.ByteOrder
	// FormatVersion overrides the version declared by the bank header when
	// non-zero.
	FormatVersion uint32
	// Layouts selects hierarchy object decoders. Defaults to DefaultLayouts().
	Layouts *Layouts
	// Registry interprets sections during decode. Defaults to
	// NewSectionRegistry().
	Registry *SectionRegistry
}

// Bank is a decoded soundbank. It aliases the buffer it was decoded from;
// that buffer must not be modified while the bank is in use.
type Bank struct {
	// Envelope is the optional AKBK preamble.
	Envelope *Envelope
	// Order is the byte order used for every field of the bank.
	Order binary.ByteOrder
	// Header is the decoded BKHD section, nil when the bank has none.
	Header *BankHeader
	// Index is the decoded DIDX section. It is empty, not nil, when the bank
	// has no index.
	Index *PayloadIndex
	// Data is the DATA section, nil when the bank has none.
	Data *RawDataStore

	sections      []Section
	indexSection  []byte
	formatVersion uint32
	layouts       *Layouts
	hierarchy     *Hierarchy
}

// Decode splits data into sections and decodes the header, index and data
// sections. The hierarchy section is decoded on the first call to Hierarchy.
func Decode(data []byte, opts *Options) (*Bank, error) {
	if opts == nil {
		opts = &Options{}
	}

	b := &Bank{
		Order:         opts.Order,
		formatVersion: opts.FormatVersion,
		layouts:       opts.Layouts,
	}
	if b.Order == nil {
		b.Order = binary.LittleEndian
	}

	pos, err := b.readEnvelope(data)
	if err != nil {
		return nil, err
	}

	b.sections, err = splitSections(data, pos, b.Order)
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewSectionRegistry()
	}

	for _, sec := range b.sections {
		if _, err := registry.Decode(b, sec); err != nil {
			return nil, err
		}
	}

	return b, b.buildIndex()
}

func (b *Bank) readEnvelope(data []byte) (int, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], CIDEnvelope[:]) {
		return 0, nil
	}

	if len(data) < EnvelopeBytes {
		return 0, fmt.Errorf("%w: %q preamble needs %d bytes, %d available",
			ErrTruncatedHeader, CIDEnvelope, EnvelopeBytes, len(data))
	}

	env := &Envelope{
		Length:   b.Order.Uint32(data[4:8]),
		Reserved: b.Order.Uint32(data[8:12]),
	}
	env.Tracked = int(env.Length) == len(data)-EnvelopeBytes
	b.Envelope = env

	return EnvelopeBytes, nil
}

// splitSections reads tag/length pairs sequentially from pos to the end of
// data.
func splitSections(data []byte, pos int, order binary.ByteOrder) ([]Section, error) {
	var sections []Section

	for pos < len(data) {
		remaining := len(data) - pos
		if remaining < SectionHeaderBytes {
			return nil, fmt.Errorf("%w: %d bytes left at offset %d", ErrTruncatedHeader, remaining, pos)
		}

		var id [4]byte
		copy(id[:], data[pos:pos+4])

		length := order.Uint32(data[pos+4 : pos+8])
		if uint64(length) > uint64(remaining-SectionHeaderBytes) {
			return nil, fmt.Errorf("%w: section %q at offset %d declares %d bytes, %d remain",
				ErrMalformedContainer, id, pos, length, remaining-SectionHeaderBytes)
		}

		start := pos + SectionHeaderBytes
		end := start + int(length)

		sections = append(sections, Section{
			ID:    id,
			Data:  data[start:end:end],
			Order: len(sections),
		})

		pos = end
	}

	return sections, nil
}

func (b *Bank) buildIndex() error {
	if b.indexSection == nil {
		b.Index = newPayloadIndexFromEntries(nil)
		return nil
	}

	idx, err := NewPayloadIndex(b.indexSection, b.Data.Len(), b.Order)
	if err != nil {
		return err
	}

	b.Index = idx

	return nil
}

// FormatVersion returns the version used to pick hierarchy layouts: the
// override passed at decode time, or the version declared by the header.
func (b *Bank) FormatVersion() (uint32, bool) {
	if b.formatVersion != 0 {
		return b.formatVersion, true
	}

	if b.Header != nil {
		return b.Header.Version, true
	}

	return 0, false
}

// Hierarchy decodes the HIRC section. The result is cached. A bank without a
// hierarchy section yields an empty graph.
func (b *Bank) Hierarchy() (*Hierarchy, error) {
	if b.hierarchy != nil {
		return b.hierarchy, nil
	}

	sec, ok := b.Section(CIDHierarchy)
	if !ok {
		b.hierarchy = newHierarchy()
		return b.hierarchy, nil
	}

	version, ok := b.FormatVersion()
	if !ok {
		return nil, fmt.Errorf("%w: %q needs a format version but the bank has no %q section",
			ErrMalformedContainer, CIDHierarchy, CIDBankHeader)
	}

	h, err := DecodeHierarchy(sec.Data, version, b.Order, b.layouts)
	if err != nil {
		return nil, err
	}

	b.hierarchy = h

	return h, nil
}

// Payload returns the bytes of the payload with the passed ID.
func (b *Bank) Payload(id uint32) ([]byte, error) {
	entry, ok := b.Index.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadID, id)
	}

	return b.Data.Slice(entry)
}
