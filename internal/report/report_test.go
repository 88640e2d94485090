package report

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cwbudde/bnk"
)

func section(id string, data []byte) []byte {
	out := make([]byte, 8, 8+len(data))
	copy(out, id)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))

	return append(out, data...)
}

func testBank(t *testing.T) *bnk.Bank {
	t.Helper()

	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:], 134)
	binary.LittleEndian.PutUint32(hdr[4:], 99)

	entries := [][3]uint32{{5, 0, 4}, {2, 16, 3}}
	didx := make([]byte, 0, 24)

	for _, e := range entries {
		for _, v := range e {
			didx = binary.LittleEndian.AppendUint32(didx, v)
		}
	}

	data := make([]byte, 19)
	copy(data, "abcd")
	copy(data[16:], "xyz")

	var raw []byte
	raw = append(raw, section("BKHD", hdr)...)
	raw = append(raw, section("DIDX", didx)...)
	raw = append(raw, section("DATA", data)...)

	b, err := bnk.Decode(raw, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	return b
}

func TestFormatID(t *testing.T) {
	if got := FormatID(0xAB, Hex); got != "0x000000AB" {
		t.Fatalf("hex mismatch: got %q", got)
	}

	if got := FormatID(0xAB, Dec); got != "171" {
		t.Fatalf("dec mismatch: got %q", got)
	}
}

func TestCatalogJSON(t *testing.T) {
	out := CatalogJSON(map[uint32]uint32{100: 4, 20: 3, 3: 9})

	want := "{\n  \"3\": 9,\n  \"20\": 3,\n  \"100\": 4\n}\n"
	if string(out) != want {
		t.Fatalf("catalog mismatch:\ngot  %q\nwant %q", out, want)
	}

	var decoded map[string]uint32
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("catalog is not valid json: %v", err)
	}

	if got := string(CatalogJSON(nil)); got != "{}\n" {
		t.Fatalf("empty catalog mismatch: got %q", got)
	}
}

func TestDigestIsStable(t *testing.T) {
	a := Digest([]byte("payload"))
	b := Digest([]byte("payload"))
	c := Digest([]byte("payloae"))

	if a != b {
		t.Fatalf("digest not stable: %s vs %s", a, b)
	}

	if a == c {
		t.Fatalf("different inputs share digest %s", a)
	}

	if len(a) != 64 {
		t.Fatalf("digest length mismatch: got %d want 64", len(a))
	}
}

func TestWriteInfo(t *testing.T) {
	b := testBank(t)

	var out bytes.Buffer
	if err := WriteInfo(&out, b, InfoOptions{Name: "test.bnk", Digests: true}); err != nil {
		t.Fatalf("info failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Soundbank: test.bnk",
		"Version: 134",
		"Sections: BKHD DIDX DATA",
		"Audio files: 2",
		"Total data size: 7 bytes",
		Digest([]byte("abcd")),
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("info output missing %q:\n%s", want, text)
		}
	}

	if strings.Index(text, "  2\t") > strings.Index(text, "  5\t") {
		t.Fatalf("payload lines not sorted by ID:\n%s", text)
	}
}

func TestWriteEvents(t *testing.T) {
	events := []*bnk.ResolvedEvent{
		{EventID: 1, ActionIDs: []uint32{2}, PayloadIDs: []uint32{16, 17}},
		{EventID: 3, ActionIDs: []uint32{4}, Unresolved: []bnk.UnresolvedReference{{From: 4, Target: 9}}},
	}

	var out bytes.Buffer
	WriteEvents(&out, events, EventOptions{Format: Hex})

	text := out.String()
	for _, want := range []string{
		"Found 2 events:",
		"Event ID: 0x00000001",
		"Associated Audio File IDs: [0x00000010, 0x00000011]",
		"Associated Audio File IDs: [No Audio Linked]",
		"Unresolved: 0x00000004 -> 0x00000009",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("event output missing %q:\n%s", want, text)
		}
	}
}

func TestEventsJSON(t *testing.T) {
	events := []*bnk.ResolvedEvent{
		{EventID: 30, PayloadIDs: []uint32{2, 1}},
		{EventID: 4},
	}

	out, err := EventsJSON(events)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded map[string][]uint32
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	want := map[string][]uint32{"30": {2, 1}, "4": {}}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Fatalf("event map mismatch (-want +got):\n%s", diff)
	}

	if strings.Index(string(out), "\"30\"") > strings.Index(string(out), "\"4\"") {
		t.Fatalf("events not in declaration order:\n%s", out)
	}
}
