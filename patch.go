package bnk

import (
	"bytes"
	"fmt"
	"slices"
)

// DefaultAlignment is the boundary payloads are padded to when a bank is
// patched.
const DefaultAlignment = 16

// PatchOptions configures Patch.
type PatchOptions struct {
	// Alignment is the boundary every payload end is zero padded to.
	// Zero selects DefaultAlignment, one disables padding.
	Alignment uint32
	// Stats is filled in when non-nil.
	Stats *PatchStats
}

// PatchStats summarises a patch.
type PatchStats struct {
	Entries  int
	Replaced int
	// OriginalDataSize and NewDataSize are DATA section lengths, padding
	// included.
	OriginalDataSize int
	NewDataSize      int
}

// Delta returns the change of the data section length.
func (s PatchStats) Delta() int {
	return s.NewDataSize - s.OriginalDataSize
}

func (o *PatchOptions) alignment() uint32 {
	if o == nil || o.Alignment == 0 {
		return DefaultAlignment
	}

	return o.Alignment
}

// Patch returns a new bank whose payloads are substituted by replacements.
// Every key must be an indexed payload ID. The source bank is never modified.
func Patch(b *Bank, replacements map[uint32][]byte, opts *PatchOptions) (*Bank, error) {
	if err := checkReplacementIDs(b.Index, replacements); err != nil {
		return nil, err
	}

	changed, err := effectiveReplacements(b, replacements)
	if err != nil {
		return nil, err
	}

	stats := PatchStats{
		Entries:          b.Index.Len(),
		Replaced:         len(changed),
		OriginalDataSize: b.Data.Len(),
	}

	var out *Bank
	if len(changed) == 0 {
		out = b.Clone()
	} else {
		out, err = rebuild(b, changed, opts.alignment())
		if err != nil {
			return nil, err
		}
	}

	stats.NewDataSize = out.Data.Len()
	if opts != nil && opts.Stats != nil {
		*opts.Stats = stats
	}

	return out, nil
}

func checkReplacementIDs(idx *PayloadIndex, replacements map[uint32][]byte) error {
	var missing []uint32

	for id := range replacements {
		if !idx.Has(id) {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	slices.Sort(missing)

	if len(missing) == 1 {
		return fmt.Errorf("%w: %d", ErrUnknownPayloadID, missing[0])
	}

	return fmt.Errorf("%w: %d (and %d more)", ErrUnknownPayloadID, missing[0], len(missing)-1)
}

// effectiveReplacements drops replacements equal to the current payload.
func effectiveReplacements(b *Bank, replacements map[uint32][]byte) (map[uint32][]byte, error) {
	changed := make(map[uint32][]byte, len(replacements))

	for id, data := range replacements {
		current, err := b.Payload(id)
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(current, data) {
			changed[id] = data
		}
	}

	return changed, nil
}

func padTo(n int, alignment uint32) int {
	if alignment <= 1 {
		return n
	}

	a := int(alignment)
	if rem := n % a; rem != 0 {
		return n + a - rem
	}

	return n
}

// rebuild lays the payloads out again in index order and swaps in new DIDX
// and DATA sections.
func rebuild(b *Bank, changed map[uint32][]byte, alignment uint32) (*Bank, error) {
	size := 0
	for _, e := range b.Index.Entries {
		n := int(e.Size)
		if data, ok := changed[e.ID]; ok {
			n = len(data)
		}

		size = padTo(size+n, alignment)
	}

	data := make([]byte, 0, size)
	entries := make([]PayloadEntry, 0, b.Index.Len())

	for _, e := range b.Index.Entries {
		payload, ok := changed[e.ID]
		if !ok {
			var err error

			payload, err = b.Data.Slice(e)
			if err != nil {
				return nil, err
			}
		}

		if uint64(len(data))+uint64(len(payload)) > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: payload %d would end past the 32-bit offset range",
				ErrOffsetOutOfRange, e.ID)
		}

		entries = append(entries, PayloadEntry{
			ID:     e.ID,
			Offset: uint32(len(data)),
			Size:   uint32(len(payload)),
		})

		data = append(data, payload...)
		data = append(data, make([]byte, padTo(len(data), alignment)-len(data))...)
	}

	idx := newPayloadIndexFromEntries(entries)

	out := &Bank{
		Envelope:      b.Envelope.Clone(),
		Order:         b.Order,
		formatVersion: b.formatVersion,
		layouts:       b.layouts,
	}

	if b.Header != nil {
		hdr := *b.Header
		out.Header = &hdr
	}

	out.sections = replaceSections(b.sections, idx.Bytes(b.Order), data)
	out.rebindViews(entries)

	return out, nil
}

// replaceSections copies sections, substituting the index and data bodies.
// A missing data section is inserted right after the index.
func replaceSections(src []Section, index, data []byte) []Section {
	out := make([]Section, 0, len(src)+1)
	seenIndex, seenData := false, false

	for _, sec := range src {
		switch {
		case sec.ID == CIDDataIndex && !seenIndex:
			seenIndex = true
			out = append(out, Section{ID: sec.ID, Data: index})

			if !slices.ContainsFunc(src, func(s Section) bool { return s.ID == CIDData }) {
				seenData = true
				out = append(out, Section{ID: CIDData, Data: data})
			}
		case sec.ID == CIDData && !seenData:
			seenData = true
			out = append(out, Section{ID: sec.ID, Data: data})
		default:
			out = append(out, sec.Clone())
		}
	}

	for i := range out {
		out[i].Order = i
	}

	return out
}
