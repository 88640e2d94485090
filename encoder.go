package bnk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// encoder serializes a bank using a single byte order.
type encoder struct {
	w     io.Writer
	order binary.ByteOrder

	WrittenBytes int64
}

func (e *encoder) add(src any) error {
	err := binary.Write(e.w, e.order, src)
	if err != nil {
		return fmt.Errorf("failed to write field: %w", err)
	}

	e.WrittenBytes += int64(binary.Size(src))

	return nil
}

func (e *encoder) writeSection(sec Section) error {
	n, err := e.w.Write(sec.ID[:])
	e.WrittenBytes += int64(n)

	if err != nil {
		return fmt.Errorf("failed to write section id %q: %w", sec.ID, err)
	}

	err = e.add(sec.Size())
	if err != nil {
		return fmt.Errorf("failed to write section size %q: %w", sec.ID, err)
	}

	if len(sec.Data) > 0 {
		n, err := e.w.Write(sec.Data)
		e.WrittenBytes += int64(n)

		if err != nil {
			return fmt.Errorf("failed to write section payload %q: %w", sec.ID, err)
		}
	}

	return nil
}

func (e *encoder) writeEnvelope(env *Envelope, bodySize int64) error {
	n, err := e.w.Write(CIDEnvelope[:])
	e.WrittenBytes += int64(n)

	if err != nil {
		return fmt.Errorf("failed to write %q preamble: %w", CIDEnvelope, err)
	}

	length := env.Length
	if env.Tracked {
		length = uint32(bodySize)
	}

	if err := e.add(length); err != nil {
		return err
	}

	return e.add(env.Reserved)
}

// bodySize returns the number of bytes the sections take once serialized.
func (b *Bank) bodySize() int64 {
	var size int64
	for _, sec := range b.sections {
		size += SectionHeaderBytes + int64(len(sec.Data))
	}

	return size
}

// Size returns the number of bytes Bytes would produce.
func (b *Bank) Size() int64 {
	size := b.bodySize()
	if b.Envelope != nil {
		size += EnvelopeBytes
	}

	return size
}

// WriteTo serializes the envelope and every section in their original order.
// Section lengths are taken from the section data.
func (b *Bank) WriteTo(w io.Writer) (int64, error) {
	enc := &encoder{w: w, order: b.Order}

	if b.Envelope != nil {
		if err := enc.writeEnvelope(b.Envelope, b.bodySize()); err != nil {
			return enc.WrittenBytes, err
		}
	}

	for _, sec := range b.sections {
		if err := enc.writeSection(sec); err != nil {
			return enc.WrittenBytes, err
		}
	}

	return enc.WrittenBytes, nil
}

// Bytes returns the serialized bank.
func (b *Bank) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(int(b.Size()))

	// writes to a bytes.Buffer only fail on allocation panics
	_, _ = b.WriteTo(&buf)

	return buf.Bytes()
}
