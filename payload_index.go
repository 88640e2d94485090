package bnk

import (
	"encoding/binary"
	"fmt"
)

// PayloadEntryBytes is the size of one id/offset/size triple in the index
// section.
const PayloadEntryBytes = 12

// PayloadEntry locates one embedded payload inside the data section.
type PayloadEntry struct {
	ID uint32
	// Offset is relative to the start of the data section payload.
	Offset uint32
	Size   uint32
}

// End returns the offset one past the last byte of the payload.
func (e PayloadEntry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}

// PayloadIndex is the decoded DIDX section. Entries keep the order in which
// they were stored.
type PayloadIndex struct {
	Entries []PayloadEntry
	byID    map[uint32]int
}

// NewPayloadIndex decodes an index section. dataLen is the length of the data
// section the entries point into.
func NewPayloadIndex(section []byte, dataLen int, order binary.ByteOrder) (*PayloadIndex, error) {
	if len(section)%PayloadEntryBytes != 0 {
		return nil, fmt.Errorf("%w: index section length %d is not a multiple of %d",
			ErrCorruptIndex, len(section), PayloadEntryBytes)
	}

	count := len(section) / PayloadEntryBytes
	idx := &PayloadIndex{
		Entries: make([]PayloadEntry, 0, count),
		byID:    make(map[uint32]int, count),
	}

	for i := 0; i < count; i++ {
		raw := section[i*PayloadEntryBytes : (i+1)*PayloadEntryBytes]
		entry := PayloadEntry{
			ID:     order.Uint32(raw[0:4]),
			Offset: order.Uint32(raw[4:8]),
			Size:   order.Uint32(raw[8:12]),
		}

		if _, ok := idx.byID[entry.ID]; ok {
			return nil, fmt.Errorf("%w: payload %d is indexed twice", ErrDuplicateID, entry.ID)
		}

		if entry.End() > uint64(dataLen) {
			return nil, fmt.Errorf("%w: payload %d spans [%d, %d) but the data section holds %d bytes",
				ErrOffsetOutOfRange, entry.ID, entry.Offset, entry.End(), dataLen)
		}

		idx.byID[entry.ID] = len(idx.Entries)
		idx.Entries = append(idx.Entries, entry)
	}

	return idx, nil
}

func newPayloadIndexFromEntries(entries []PayloadEntry) *PayloadIndex {
	idx := &PayloadIndex{
		Entries: entries,
		byID:    make(map[uint32]int, len(entries)),
	}
	for i, e := range entries {
		idx.byID[e.ID] = i
	}

	return idx
}

// Len returns the number of indexed payloads.
func (idx *PayloadIndex) Len() int {
	if idx == nil {
		return 0
	}

	return len(idx.Entries)
}

// Lookup returns the entry for the passed payload ID.
func (idx *PayloadIndex) Lookup(id uint32) (PayloadEntry, bool) {
	if idx == nil {
		return PayloadEntry{}, false
	}

	i, ok := idx.byID[id]
	if !ok {
		return PayloadEntry{}, false
	}

	return idx.Entries[i], true
}

// Has reports whether the payload ID is indexed.
func (idx *PayloadIndex) Has(id uint32) bool {
	_, ok := idx.Lookup(id)
	return ok
}

// IDs returns the payload IDs in index order.
func (idx *PayloadIndex) IDs() []uint32 {
	if idx == nil {
		return nil
	}

	out := make([]uint32, len(idx.Entries))
	for i, e := range idx.Entries {
		out[i] = e.ID
	}

	return out
}

// Catalog maps every payload ID to its size.
func (idx *PayloadIndex) Catalog() map[uint32]uint32 {
	if idx == nil {
		return map[uint32]uint32{}
	}

	out := make(map[uint32]uint32, len(idx.Entries))
	for _, e := range idx.Entries {
		out[e.ID] = e.Size
	}

	return out
}

// TotalSize returns the sum of all payload sizes, excluding padding.
func (idx *PayloadIndex) TotalSize() uint64 {
	if idx == nil {
		return 0
	}

	var total uint64
	for _, e := range idx.Entries {
		total += uint64(e.Size)
	}

	return total
}

// Bytes encodes the index section.
func (idx *PayloadIndex) Bytes(order binary.ByteOrder) []byte {
	if idx == nil {
		return nil
	}

	out := make([]byte, len(idx.Entries)*PayloadEntryBytes)
	for i, e := range idx.Entries {
		raw := out[i*PayloadEntryBytes:]
		order.PutUint32(raw[0:4], e.ID)
		order.PutUint32(raw[4:8], e.Offset)
		order.PutUint32(raw[8:12], e.Size)
	}

	return out
}

// RawDataStore is an opaque view over the data section.
type RawDataStore struct {
	data []byte
}

// NewRawDataStore wraps the data section bytes. The bytes are not copied.
func NewRawDataStore(data []byte) *RawDataStore {
	return &RawDataStore{data: data}
}

// Len returns the length of the data section.
func (s *RawDataStore) Len() int {
	if s == nil {
		return 0
	}

	return len(s.data)
}

// Slice returns the payload bytes addressed by entry. The returned slice
// aliases the bank buffer.
func (s *RawDataStore) Slice(entry PayloadEntry) ([]byte, error) {
	if entry.End() > uint64(s.Len()) {
		return nil, fmt.Errorf("%w: payload %d spans [%d, %d) but the data section holds %d bytes",
			ErrCorruptIndex, entry.ID, entry.Offset, entry.End(), s.Len())
	}

	if s == nil {
		return []byte{}, nil
	}

	return s.data[entry.Offset:entry.End():entry.End()], nil
}
