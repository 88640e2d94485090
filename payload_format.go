package bnk

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
)

// Container formats recognised by ProbePayload.
const (
	ContainerUnknown = "unknown"
	ContainerRIFF    = "RIFF"
	ContainerRIFX    = "RIFX"
	ContainerAIFF    = "AIFF"
)

const (
	formatTagPCM        = 0x0001
	formatTagADPCM      = 0x0002
	formatTagXMA2       = 0x0166
	formatTagOpus       = 0x3040
	formatTagOpusWEM    = 0x3041
	formatTagExtensible = 0xFFFE
	formatTagVorbis     = 0xFFFF

	// fmtBaseBytes is the size of the fields shared by every fmt chunk.
	fmtBaseBytes = 16
)

var (
	riffxID   = [4]byte{'R', 'I', 'F', 'X'}
	formID    = [4]byte{'F', 'O', 'R', 'M'}
	aiffID    = [4]byte{'A', 'I', 'F', 'F'}
	aifcID    = [4]byte{'A', 'I', 'F', 'C'}
	codecTags = map[uint16]string{
		formatTagPCM:        "pcm",
		formatTagADPCM:      "adpcm",
		formatTagXMA2:       "xma2",
		formatTagOpus:       "opus",
		formatTagOpusWEM:    "opus",
		formatTagExtensible: "extensible",
		formatTagVorbis:     "vorbis",
	}
)

// PayloadFormat describes the header of an embedded payload. Only headers are
// read; audio data is never decoded.
type PayloadFormat struct {
	Container string
	// FormatTag is the fmt chunk format tag of RIFF/RIFX payloads. For
	// extensible formats it is the tag stored in the sub-format GUID.
	FormatTag uint16
	Codec     string
	Format    audio.Format
	BitDepth  int
	// Err is set when the container was recognised but its header could not
	// be read.
	Err error
}

func (f PayloadFormat) String() string {
	if f.Container == ContainerUnknown {
		return ContainerUnknown
	}

	if f.Err != nil {
		return fmt.Sprintf("%s (unreadable header)", f.Container)
	}

	return fmt.Sprintf("%s %s %dch %dHz %dbit",
		f.Container, f.Codec, f.Format.NumChannels, f.Format.SampleRate, f.BitDepth)
}

// CodecName returns the common name of a fmt format tag.
func CodecName(tag uint16) string {
	if name, ok := codecTags[tag]; ok {
		return name
	}

	return fmt.Sprintf("0x%04X", tag)
}

// ProbePayload identifies the container of a payload and reads its format
// header.
func ProbePayload(data []byte) PayloadFormat {
	if len(data) < 12 {
		return PayloadFormat{Container: ContainerUnknown}
	}

	var id, form [4]byte
	copy(id[:], data[0:4])
	copy(form[:], data[8:12])

	switch {
	case id == riff.RiffID:
		return probeRIFF(data, binary.LittleEndian, ContainerRIFF)
	case id == riffxID:
		return probeRIFF(data, binary.BigEndian, ContainerRIFX)
	case id == formID && (form == aiffID || form == aifcID):
		return probeAIFF(data)
	default:
		return PayloadFormat{Container: ContainerUnknown}
	}
}

// probeRIFF walks the chunks following the 12-byte RIFF header until it finds
// the fmt chunk.
func probeRIFF(data []byte, order binary.ByteOrder, container string) PayloadFormat {
	out := PayloadFormat{Container: container}
	pos := 12

	for len(data)-pos >= 8 {
		var id [4]byte
		copy(id[:], data[pos:pos+4])

		size := order.Uint32(data[pos+4 : pos+8])
		start := pos + 8

		if uint64(size) > uint64(len(data)-start) {
			out.Err = fmt.Errorf("%w: chunk %q at offset %d declares %d bytes, %d remain",
				ErrMalformedContainer, id, pos, size, len(data)-start)
			return out
		}

		if id == riff.FmtID {
			ch := &riff.Chunk{ID: id, Size: int(size), R: bytes.NewReader(data[start : start+int(size)])}
			out.Err = readFmtChunk(ch, order, &out)

			return out
		}

		// chunks are padded to an even size
		pos = start + int(size) + int(size&1)
	}

	out.Err = fmt.Errorf("%w: no %q chunk", ErrMalformedContainer, riff.FmtID)

	return out
}

func readFmtChunk(ch *riff.Chunk, order binary.ByteOrder, out *PayloadFormat) error {
	if ch.Size < fmtBaseBytes {
		return fmt.Errorf("%w: fmt chunk holds %d bytes, need %d", ErrMalformedContainer, ch.Size, fmtBaseBytes)
	}

	var (
		tag, channels, blockAlign, bits uint16
		sampleRate, byteRate            uint32
	)

	for _, field := range []any{&tag, &channels, &sampleRate, &byteRate, &blockAlign, &bits} {
		if err := readField(ch, order, field); err != nil {
			return fmt.Errorf("failed to read fmt field: %w", err)
		}
	}

	// the extensible sub-format GUID starts with the real format tag
	if tag == formatTagExtensible && ch.Size >= fmtBaseBytes+2+22 {
		var (
			extSize, validBits uint16
			channelMask        uint32
			subFormat          uint16
		)

		for _, field := range []any{&extSize, &validBits, &channelMask, &subFormat} {
			if err := readField(ch, order, field); err != nil {
				return fmt.Errorf("failed to read fmt extension: %w", err)
			}
		}

		tag = subFormat
	}

	ch.Drain()

	out.FormatTag = tag
	out.Codec = CodecName(tag)
	out.BitDepth = int(bits)
	out.Format = audio.Format{NumChannels: int(channels), SampleRate: int(sampleRate)}

	return nil
}

func probeAIFF(data []byte) PayloadFormat {
	out := PayloadFormat{Container: ContainerAIFF, Codec: "pcm"}

	dec := aiff.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()

	if err := dec.Err(); err != nil {
		out.Err = fmt.Errorf("failed to read aiff header: %w", err)
		return out
	}

	out.BitDepth = int(dec.BitDepth)
	out.Format = audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)}

	return out
}
