package bnk

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

func riffPayload(order binary.ByteOrder, magic string, tag, channels uint16, rate uint32, bits uint16, ext []byte) []byte {
	fmtChunk := newWriter(order).u16(tag).u16(channels).u32(rate).u32(rate * uint32(channels) * uint32(bits) / 8).u16(channels * bits / 8).u16(bits)
	if ext != nil {
		fmtChunk.u16(uint16(len(ext))).raw(ext)
	}

	body := newWriter(order).raw([]byte("WAVE"))
	body.raw([]byte("JUNK")).u32(3).raw([]byte{0, 0, 0, 0})
	body.section("fmt ", fmtChunk.bytes())
	body.section("data", []byte{1, 2, 3, 4})

	return newWriter(order).raw([]byte(magic)).u32(uint32(len(body.buf))).raw(body.bytes()).bytes()
}

func TestProbePayloadRIFF(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		container string
		codec     string
		tag       uint16
		channels  int
		rate      int
		bits      int
	}{
		{
			name:      "pcm",
			data:      riffPayload(binary.LittleEndian, "RIFF", 0x0001, 2, 48000, 16, nil),
			container: ContainerRIFF, codec: "pcm", tag: 0x0001, channels: 2, rate: 48000, bits: 16,
		},
		{
			name:      "vorbis",
			data:      riffPayload(binary.LittleEndian, "RIFF", 0xFFFF, 1, 44100, 0, make([]byte, 48)),
			container: ContainerRIFF, codec: "vorbis", tag: 0xFFFF, channels: 1, rate: 44100, bits: 0,
		},
		{
			name: "extensible",
			data: riffPayload(binary.LittleEndian, "RIFF", 0xFFFE, 6, 48000, 24,
				newWriter(binary.LittleEndian).u16(24).u32(0x3F).u16(0x0001).raw(make([]byte, 14)).bytes()),
			container: ContainerRIFF, codec: "pcm", tag: 0x0001, channels: 6, rate: 48000, bits: 24,
		},
		{
			name:      "big endian xma2",
			data:      riffPayload(binary.BigEndian, "RIFX", 0x0166, 2, 32000, 16, make([]byte, 34)),
			container: ContainerRIFX, codec: "xma2", tag: 0x0166, channels: 2, rate: 32000, bits: 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ProbePayload(tt.data)
			if f.Err != nil {
				t.Fatalf("probe failed: %v", f.Err)
			}

			if f.Container != tt.container || f.Codec != tt.codec || f.FormatTag != tt.tag {
				t.Fatalf("format mismatch: got %s/%s/%#x want %s/%s/%#x",
					f.Container, f.Codec, f.FormatTag, tt.container, tt.codec, tt.tag)
			}

			want := audio.Format{NumChannels: tt.channels, SampleRate: tt.rate}
			if f.Format != want {
				t.Fatalf("audio format mismatch: got %+v want %+v", f.Format, want)
			}

			if f.BitDepth != tt.bits {
				t.Fatalf("bit depth mismatch: got %d want %d", f.BitDepth, tt.bits)
			}
		})
	}
}

func TestProbePayloadAIFF(t *testing.T) {
	var buf seekBuffer

	enc := aiff.NewEncoder(&buf, 22050, 16, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 22050},
		Data:           []int{0, 100, -100, 0},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("aiff write failed: %v", err)
	}

	if err := enc.Close(); err != nil {
		t.Fatalf("aiff close failed: %v", err)
	}

	f := ProbePayload(buf.Bytes())
	if f.Err != nil {
		t.Fatalf("probe failed: %v", f.Err)
	}

	if f.Container != ContainerAIFF || f.Format.SampleRate != 22050 || f.Format.NumChannels != 1 || f.BitDepth != 16 {
		t.Fatalf("aiff format mismatch: %+v", f)
	}
}

func TestProbePayloadUnknownAndBroken(t *testing.T) {
	if f := ProbePayload([]byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00")); f.Container != ContainerUnknown {
		t.Fatalf("expected unknown container, got %s", f.Container)
	}

	if f := ProbePayload(nil); f.String() != ContainerUnknown {
		t.Fatalf("expected unknown description, got %q", f.String())
	}

	truncated := riffPayload(binary.LittleEndian, "RIFF", 1, 1, 8000, 8, nil)[:30]
	if f := ProbePayload(truncated); f.Container != ContainerRIFF || f.Err == nil {
		t.Fatalf("expected header error for truncated RIFF, got %+v", f)
	}

	noFmt := newWriter(binary.LittleEndian).raw([]byte("RIFF")).u32(4).raw([]byte("WAVE")).bytes()
	if f := ProbePayload(noFmt); f.Err == nil {
		t.Fatal("expected error for RIFF without fmt chunk")
	}
}

func TestCodecName(t *testing.T) {
	if got := CodecName(0x3041); got != "opus" {
		t.Fatalf("codec mismatch: got %q want opus", got)
	}

	if got := CodecName(0x1234); got != "0x1234" {
		t.Fatalf("codec mismatch: got %q want 0x1234", got)
	}
}

// seekBuffer is an in-memory io.WriteSeeker for encoders that patch their
// headers on close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}

	copy(s.buf[s.pos:], p)
	s.pos += len(p)

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = int(offset)
	case 1:
		s.pos += int(offset)
	case 2:
		s.pos = len(s.buf) + int(offset)
	}

	return int64(s.pos), nil
}

func (s *seekBuffer) Bytes() []byte {
	return bytes.Clone(s.buf)
}
