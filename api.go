package bnk

// Sections returns a copy of the bank sections in their original order.
func (b *Bank) Sections() []Section {
	if b == nil {
		return nil
	}

	return cloneSections(b.sections)
}

// Section returns the first section with the passed ID. The returned data
// aliases the bank buffer.
func (b *Bank) Section(id [4]byte) (Section, bool) {
	if b == nil {
		return Section{}, false
	}

	for _, sec := range b.sections {
		if sec.ID == id {
			return sec, true
		}
	}

	return Section{}, false
}

// SectionIDs returns the section IDs in their original order.
func (b *Bank) SectionIDs() [][4]byte {
	if b == nil {
		return nil
	}

	out := make([][4]byte, len(b.sections))
	for i, sec := range b.sections {
		out[i] = sec.ID
	}

	return out
}

// Clone returns a deep copy of the bank. The copy no longer aliases the
// buffer the bank was decoded from.
func (b *Bank) Clone() *Bank {
	if b == nil {
		return nil
	}

	out := &Bank{
		Envelope:      b.Envelope.Clone(),
		Order:         b.Order,
		formatVersion: b.formatVersion,
		layouts:       b.layouts,
		sections:      cloneSections(b.sections),
	}

	if b.Header != nil {
		hdr := *b.Header
		out.Header = &hdr
	}

	var entries []PayloadEntry
	if b.Index != nil {
		entries = append(entries, b.Index.Entries...)
	}

	out.rebindViews(entries)

	return out
}

// rebindViews points Data and Index at the bank's own sections.
func (b *Bank) rebindViews(entries []PayloadEntry) {
	b.Data = nil
	b.indexSection = nil
	b.hierarchy = nil

	for _, sec := range b.sections {
		switch {
		case sec.ID == CIDData && b.Data == nil:
			b.Data = NewRawDataStore(sec.Data)
		case sec.ID == CIDDataIndex && b.indexSection == nil:
			b.indexSection = sec.Data
		}
	}

	b.Index = newPayloadIndexFromEntries(entries)
}
