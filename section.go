package bnk

var (
	// CIDBankHeader is the section ID of the bank header.
	CIDBankHeader = [4]byte{'B', 'K', 'H', 'D'}
	// CIDDataIndex is the section ID of the payload index.
	CIDDataIndex = [4]byte{'D', 'I', 'D', 'X'}
	// CIDData is the section ID of the payload data.
	CIDData = [4]byte{'D', 'A', 'T', 'A'}
	// CIDHierarchy is the section ID of the event/action/sound hierarchy.
	CIDHierarchy = [4]byte{'H', 'I', 'R', 'C'}
	// CIDEnvelope is the ID of the optional preamble wrapping the sections.
	CIDEnvelope = [4]byte{'A', 'K', 'B', 'K'}
)

const (
	// SectionHeaderBytes is the size of a section tag plus its length field.
	SectionHeaderBytes = 8
	// EnvelopeBytes is the size of the optional AKBK preamble.
	EnvelopeBytes = 12
)

// Section stores one tagged, length-prefixed region of a bank.
// The declared length of a section is always len(Data).
type Section struct {
	ID   [4]byte
	Data []byte
	// Order is the index of the section in the source buffer.
	Order int
}

// Size returns the declared length of the section.
func (s Section) Size() uint32 {
	return uint32(len(s.Data))
}

func (s Section) Clone() Section {
	out := s
	out.Data = append([]byte(nil), s.Data...)

	return out
}

func cloneSections(sections []Section) []Section {
	if len(sections) == 0 {
		return nil
	}

	out := make([]Section, len(sections))
	for i := range sections {
		out[i] = sections[i].Clone()
	}

	return out
}

// Envelope is the optional AKBK preamble found in front of the first section
// of some banks.
type Envelope struct {
	// Length is the declared number of bytes following the preamble.
	Length uint32
	// Reserved is written back untouched.
	Reserved uint32
	// Tracked reports whether Length matched the real remaining size when the
	// bank was decoded. Only tracked lengths are recomputed on write.
	Tracked bool
}

func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}

	out := *e

	return &out
}
