// Package report renders bank contents for people and for other tools.
package report

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/zeebo/blake3"

	"github.com/cwbudde/bnk"
)

// IDFormat selects how IDs are printed.
type IDFormat string

const (
	Hex IDFormat = "hex"
	Dec IDFormat = "dec"
)

// FormatID prints an ID as 0x%08X or in decimal.
func FormatID(id uint32, f IDFormat) string {
	if f == Dec {
		return strconv.FormatUint(uint64(id), 10)
	}

	return fmt.Sprintf("0x%08X", id)
}

func formatIDs(ids []uint32, f IDFormat) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = FormatID(id, f)
	}

	return strings.Join(parts, ", ")
}

// ColorEnabled reports whether w is a terminal.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd())
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedIDs[V any](m map[uint32]V) []uint32 {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// CatalogJSON encodes a {payloadID: size} catalog with keys in ascending ID
// order.
func CatalogJSON(catalog map[uint32]uint32) []byte {
	var buf bytes.Buffer

	buf.WriteString("{")

	for i, id := range sortedIDs(catalog) {
		if i > 0 {
			buf.WriteString(",")
		}

		fmt.Fprintf(&buf, "\n  \"%d\": %d", id, catalog[id])
	}

	if len(catalog) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("}\n")

	return buf.Bytes()
}

// InfoOptions selects the optional columns of WriteInfo.
type InfoOptions struct {
	Name    string
	Probe   bool
	Digests bool
}

// WriteInfo prints a bank summary followed by one line per payload.
func WriteInfo(w io.Writer, b *bnk.Bank, opts InfoOptions) error {
	if opts.Name != "" {
		fmt.Fprintf(w, "Soundbank: %s\n", opts.Name)
	}

	if b.Header != nil {
		fmt.Fprintf(w, "Version: %d\n", b.Header.Version)
		fmt.Fprintf(w, "Bank ID: %d\n", b.Header.BankID)
	}

	sections := make([]string, 0, len(b.SectionIDs()))
	for _, id := range b.SectionIDs() {
		sections = append(sections, string(id[:]))
	}

	fmt.Fprintf(w, "Sections: %s\n", strings.Join(sections, " "))

	total := b.Index.TotalSize()
	fmt.Fprintf(w, "Audio files: %d\n", b.Index.Len())
	fmt.Fprintf(w, "Total data size: %d bytes (%s)\n", total, humanize.IBytes(total))

	ids := b.Index.IDs()
	slices.Sort(ids)

	for _, id := range ids {
		entry, _ := b.Index.Lookup(id)
		line := fmt.Sprintf("  %d\t%d bytes\t%s", id, entry.Size, humanize.IBytes(uint64(entry.Size)))

		if opts.Probe || opts.Digests {
			data, err := b.Payload(id)
			if err != nil {
				return err
			}

			if opts.Probe {
				line += "\t" + bnk.ProbePayload(data).String()
			}

			if opts.Digests {
				line += "\t" + Digest(data)
			}
		}

		fmt.Fprintln(w, line)
	}

	return nil
}

// EventOptions configures WriteEvents.
type EventOptions struct {
	Format IDFormat
	Color  bool
}

// WriteEvents prints every resolved event.
func WriteEvents(w io.Writer, events []*bnk.ResolvedEvent, opts EventOptions) {
	heading := fmt.Sprintf
	if opts.Color {
		c := color.New(color.FgCyan, color.Bold)
		c.EnableColor()
		heading = c.SprintfFunc()
	}

	fmt.Fprintf(w, "Found %d events:\n", len(events))

	for _, ev := range events {
		fmt.Fprintln(w, heading("Event ID: %s", FormatID(ev.EventID, opts.Format)))
		fmt.Fprintf(w, "Action IDs: [%s]\n", formatIDs(ev.ActionIDs, opts.Format))

		if len(ev.PayloadIDs) == 0 {
			fmt.Fprintln(w, "Associated Audio File IDs: [No Audio Linked]")
		} else {
			fmt.Fprintf(w, "Associated Audio File IDs: [%s]\n", formatIDs(ev.PayloadIDs, opts.Format))
		}

		if len(ev.External) > 0 {
			fmt.Fprintf(w, "Streamed Audio File IDs: [%s]\n", formatIDs(ev.External, opts.Format))
		}

		for _, ref := range ev.Unresolved {
			fmt.Fprintf(w, "Unresolved: %s -> %s\n", FormatID(ref.From, opts.Format), FormatID(ref.Target, opts.Format))
		}

		fmt.Fprintln(w, strings.Repeat("-", 60))
	}
}

// EventsJSON maps decimal event IDs to their payload IDs, in event order.
func EventsJSON(events []*bnk.ResolvedEvent) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("{")

	for i, ev := range events {
		if i > 0 {
			buf.WriteString(",")
		}

		ids := ev.PayloadIDs
		if ids == nil {
			ids = []uint32{}
		}

		list, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&buf, "\n  \"%d\": %s", ev.EventID, list)
	}

	if len(events) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("}\n")

	return buf.Bytes(), nil
}
