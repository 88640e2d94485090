// Package bnk reads, analyzes and patches chunked soundbank containers.
//
// A bank is a sequence of tagged sections (BKHD, DIDX, DATA, HIRC, ...),
// optionally wrapped in an AKBK preamble. Decode splits the sections and
// interprets the header, the payload index and the data section; every other
// section is kept verbatim so an unmodified bank reserializes byte for byte.
//
// The hierarchy section is decoded on demand:
//
//   - Bank.Hierarchy() decodes HIRC with the layout table for the bank version
//   - Resolve/ResolveAll follow events to the payloads they can play
//   - Patch rebuilds the index and data sections with substituted payloads
//
// Payloads are opaque. ProbePayload reads RIFF/RIFX/AIFF headers for
// reporting but never decodes audio.
package bnk
