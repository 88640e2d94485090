package bnk

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedContainer is returned when a declared section or object
	// length runs past the end of the available bytes.
	ErrMalformedContainer = errors.New("malformed container")
	// ErrTruncatedHeader is returned when fewer than 8 bytes remain for a
	// section tag and length.
	ErrTruncatedHeader = errors.New("truncated section header")
	// ErrDuplicateID is returned when two payload entries (or two hierarchy
	// objects) share an ID.
	ErrDuplicateID = errors.New("duplicate ID")
	// ErrOffsetOutOfRange is returned when an index entry points past the end
	// of the data section.
	ErrOffsetOutOfRange = errors.New("payload offset out of range")
	// ErrCorruptIndex is returned when the index and data sections disagree at
	// read time, or when the index section itself is not well formed.
	ErrCorruptIndex = errors.New("corrupt payload index")
	// ErrUnknownObjectType is returned when a hierarchy type code has no layout
	// for the bank's format version.
	ErrUnknownObjectType = errors.New("unknown hierarchy object type")
	// ErrUnderflowInObjectBody is returned when an object body is shorter than
	// the fixed fields of its layout.
	ErrUnderflowInObjectBody = errors.New("hierarchy object body underflow")
	// ErrUnresolvedReference marks a hierarchy link to an object that does not
	// exist.
	ErrUnresolvedReference = errors.New("unresolved hierarchy reference")
	// ErrUnknownPayloadID is returned when a patch targets a payload the bank
	// does not index.
	ErrUnknownPayloadID = errors.New("unknown payload ID")
	// ErrIOFailure wraps file system errors raised while loading or saving
	// banks and payloads.
	ErrIOFailure = errors.New("i/o failure")
)

// UnresolvedReference records a link from one hierarchy object to an ID that
// has no object in the graph.
type UnresolvedReference struct {
	From   uint32
	Target uint32
}

func (r UnresolvedReference) Error() string {
	return fmt.Sprintf("%s: object %d references missing object %d", ErrUnresolvedReference, r.From, r.Target)
}

// Is makes errors.Is(r, ErrUnresolvedReference) report true.
func (r UnresolvedReference) Is(target error) bool {
	return target == ErrUnresolvedReference
}
