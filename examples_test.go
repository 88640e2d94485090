package bnk_test

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/cwbudde/bnk"
)

// exampleBank returns a bank with a header, one index entry and its data.
func exampleBank() []byte {
	le := binary.LittleEndian

	var out []byte

	section := func(id string, data []byte) {
		out = append(out, id...)
		out = le.AppendUint32(out, uint32(len(data)))
		out = append(out, data...)
	}

	header := le.AppendUint32(le.AppendUint32(nil, 134), 1)
	index := le.AppendUint32(le.AppendUint32(le.AppendUint32(nil, 42), 0), 4)

	section("BKHD", header)
	section("DIDX", index)
	section("DATA", []byte("RIFF"))

	return out
}

func ExampleDecode() {
	b, err := bnk.Decode(exampleBank(), nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("version %d, %d payload(s): %v\n", b.Header.Version, b.Index.Len(), b.Index.Catalog())
	// Output: version 134, 1 payload(s): map[42:4]
}

func ExamplePatch() {
	b, err := bnk.Decode(exampleBank(), nil)
	if err != nil {
		log.Fatal(err)
	}

	patched, err := bnk.Patch(b, map[uint32][]byte{42: []byte("replacement")}, nil)
	if err != nil {
		log.Fatal(err)
	}

	entry, _ := patched.Index.Lookup(42)
	fmt.Printf("size %d, data section %d bytes\n", entry.Size, patched.Data.Len())
	// Output: size 11, data section 16 bytes
}
