package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/cwbudde/bnk"
	"github.com/cwbudde/bnk/internal/fileutil"
	"github.com/cwbudde/bnk/internal/replacements"
	"github.com/cwbudde/bnk/internal/report"
)

var errMissingReplacement = errors.New("replacement file not found")

// InfoCmd prints the payload catalog.
type InfoCmd struct {
	Bank          string `arg:"" help:"Soundbank file" type:"existingfile"`
	ExportCatalog string `name:"export-catalog" help:"Write the {id: size} catalog as JSON" type:"path"`
	Probe         bool   `help:"Read the format header of every payload"`
	Digests       bool   `help:"Print the BLAKE3 digest of every payload"`
}

func (c *InfoCmd) Run(env *environment) error {
	b, err := env.loadBank(c.Bank, bnk.Options{})
	if err != nil {
		return err
	}

	err = report.WriteInfo(env.out, b, report.InfoOptions{
		Name:    c.Bank,
		Probe:   c.Probe,
		Digests: c.Digests,
	})
	if err != nil {
		return err
	}

	if c.ExportCatalog == "" {
		return nil
	}

	if err := fileutil.WriteFileAtomic(c.ExportCatalog, report.CatalogJSON(b.Index.Catalog()), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Catalog exported to: %s\n", c.ExportCatalog)

	return nil
}

// ExtractCmd writes one payload to a file.
type ExtractCmd struct {
	Bank   string `arg:"" help:"Soundbank file" type:"existingfile"`
	ID     uint32 `arg:"" help:"Payload ID"`
	Output string `short:"o" help:"Output file (default <id>.wem)" type:"path"`
}

func (c *ExtractCmd) Run(env *environment) error {
	b, err := env.loadBank(c.Bank, bnk.Options{})
	if err != nil {
		return err
	}

	data, err := b.Payload(c.ID)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = payloadFileName(c.ID)
	}

	if err := fileutil.WriteFileAtomic(out, data, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Audio ID %d extracted to: %s\n", c.ID, out)

	return nil
}

// ExtractAllCmd writes every payload to a directory.
type ExtractAllCmd struct {
	Bank string `arg:"" help:"Soundbank file" type:"existingfile"`
	Dir  string `arg:"" help:"Output directory, created if missing" type:"path"`
}

func (c *ExtractAllCmd) Run(env *environment) error {
	b, err := env.loadBank(c.Bank, bnk.Options{})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", bnk.ErrIOFailure, err)
	}

	for _, entry := range b.Index.Entries {
		data, err := b.Payload(entry.ID)
		if err != nil {
			return err
		}

		path := filepath.Join(c.Dir, payloadFileName(entry.ID))
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return err
		}

		env.logger.Debug("extracted payload", "id", entry.ID, "bytes", len(data), "path", path)
	}

	fmt.Fprintf(env.out, "%d audio files extracted to: %s\n", b.Index.Len(), c.Dir)

	return nil
}

// ReplaceOneCmd substitutes a single payload.
type ReplaceOneCmd struct {
	Bank      string `arg:"" help:"Soundbank file" type:"existingfile"`
	ID        uint32 `arg:"" help:"Payload ID"`
	File      string `arg:"" help:"Replacement payload" type:"path"`
	Output    string `short:"o" help:"Output file (default replaced_<id>_<bank>)" type:"path"`
	Alignment uint32 `default:"16" help:"Pad every payload to this boundary"`
}

func (c *ReplaceOneCmd) Run(env *environment) error {
	b, err := env.loadBank(c.Bank, bnk.Options{})
	if err != nil {
		return err
	}

	data, err := readReplacement(c.File)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = siblingPath(c.Bank, "replaced_"+strconv.FormatUint(uint64(c.ID), 10)+"_")
	}

	if _, err := patchAndSave(env, b, map[uint32][]byte{c.ID: data}, c.Alignment, out); err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Audio ID %d replaced and saved to: %s\n", c.ID, out)

	return nil
}

// PatchCmd applies a replacement file.
type PatchCmd struct {
	Bank      string `arg:"" help:"Soundbank file" type:"existingfile"`
	Config    string `arg:"" help:"JSON or YAML file mapping payload IDs to files" type:"existingfile"`
	Output    string `short:"o" help:"Output file (default patched_<bank>)" type:"path"`
	WemDir    string `name:"wem-dir" short:"w" help:"Directory searched first for replacement files" type:"path"`
	Alignment uint32 `default:"16" help:"Pad every payload to this boundary"`
}

func (c *PatchCmd) Run(env *environment) error {
	b, err := env.loadBank(c.Bank, bnk.Options{})
	if err != nil {
		return err
	}

	cfg, err := replacements.Load(c.Config)
	if err != nil {
		return err
	}

	for _, e := range cfg.Entries {
		if e.Coerced {
			env.logger.Warn("coerced numeric value to file name; prefer string paths",
				"id", e.ID, "file", e.File)
		}
	}

	paths := cfg.Resolve(c.WemDir)

	// every file is checked before any is read so a typo fails fast
	var missing []string
	for _, e := range cfg.Entries {
		if _, err := os.Stat(paths[e.ID]); err != nil {
			missing = append(missing, fmt.Sprintf("%d: %s", e.ID, paths[e.ID]))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errMissingReplacement, strings.Join(missing, ", "))
	}

	repl := make(map[uint32][]byte, len(paths))
	for _, e := range cfg.Entries {
		data, err := readReplacement(paths[e.ID])
		if err != nil {
			return err
		}

		env.logger.Debug("queued replacement", "id", e.ID, "path", paths[e.ID], "bytes", len(data))
		repl[e.ID] = data
	}

	out := c.Output
	if out == "" {
		out = siblingPath(c.Bank, "patched_")
	}

	stats, err := patchAndSave(env, b, repl, c.Alignment, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Patched %d of %d audio files\n", stats.Replaced, stats.Entries)
	fmt.Fprintf(env.out, "Data size: %s -> %s (%+d bytes)\n",
		humanize.IBytes(uint64(stats.OriginalDataSize)), humanize.IBytes(uint64(stats.NewDataSize)), stats.Delta())
	fmt.Fprintf(env.out, "Saved to: %s\n", out)

	return nil
}

// EventsCmd prints the payloads reachable from every event.
type EventsCmd struct {
	Bank     string `arg:"" help:"Soundbank file" type:"existingfile"`
	Format   string `enum:"hex,dec" default:"hex" help:"ID output format (hex|dec)"`
	JSON     string `name:"json" help:"Write the {event: [payload IDs]} map as JSON" type:"path"`
	PlayOnly bool   `name:"play-only" help:"Only follow play actions"`
	Version  uint32 `help:"Override the format version declared by the bank header"`
	Strict   bool   `help:"Fail on objects whose body does not fit the layout"`
}

func (c *EventsCmd) Run(env *environment) error {
	layouts := bnk.DefaultLayouts()
	layouts.Tolerant = !c.Strict

	b, err := env.loadBank(c.Bank, bnk.Options{FormatVersion: c.Version, Layouts: layouts})
	if err != nil {
		return err
	}

	h, err := b.Hierarchy()
	if err != nil {
		return fmt.Errorf("%s: %w", c.Bank, err)
	}

	for _, id := range h.Degraded {
		obj, _ := h.Object(id)
		env.logger.Warn("object body does not fit its layout; references not followed",
			"id", id, "type", obj.ObjectType().String())
	}

	opts := &bnk.ResolveOptions{Embedded: bnk.IndexedPayloads(b.Index)}
	if c.PlayOnly {
		opts.Actions = []bnk.ActionKind{bnk.ActionPlay}
	}

	events, err := bnk.ResolveAll(h, opts)
	if err != nil {
		return err
	}

	for _, ev := range events {
		for _, ref := range ev.Unresolved {
			env.logger.Warn("unresolved hierarchy reference", "event", ev.EventID, "from", ref.From, "target", ref.Target)
		}
	}

	report.WriteEvents(env.out, events, report.EventOptions{
		Format: report.IDFormat(c.Format),
		Color:  report.ColorEnabled(env.out),
	})

	if c.JSON == "" {
		return nil
	}

	data, err := report.EventsJSON(events)
	if err != nil {
		return err
	}

	return fileutil.WriteFileAtomic(c.JSON, data, 0o644)
}

// JSONToYAMLCmd converts a replacement file to YAML.
type JSONToYAMLCmd struct {
	Input  string `arg:"" help:"JSON replacement file" type:"existingfile"`
	Output string `short:"o" help:"Output file (default input with .yaml extension)" type:"path"`
}

func (c *JSONToYAMLCmd) Run(env *environment) error {
	return convert(env, c.Input, c.Output, replacements.FormatJSON, replacements.FormatYAML, ".yaml")
}

// YAMLToJSONCmd converts a replacement file to JSON.
type YAMLToJSONCmd struct {
	Input  string `arg:"" help:"YAML replacement file" type:"existingfile"`
	Output string `short:"o" help:"Output file (default input with .json extension)" type:"path"`
}

func (c *YAMLToJSONCmd) Run(env *environment) error {
	return convert(env, c.Input, c.Output, replacements.FormatYAML, replacements.FormatJSON, ".json")
}

func convert(env *environment, in, out string, from, to replacements.Format, ext string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("%w: %w", bnk.ErrIOFailure, err)
	}

	entries, err := replacements.Parse(data, from)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	for _, e := range entries {
		if e.Coerced {
			env.logger.Warn("coerced numeric value to file name", "id", e.ID, "file", e.File)
		}
	}

	encoded, err := replacements.Encode(entries, to)
	if err != nil {
		return err
	}

	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ext
	}

	if err := fileutil.WriteFileAtomic(out, encoded, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(env.out, "Converted %s to %s (%d entries)\n", in, out, len(entries))

	return nil
}

func patchAndSave(env *environment, b *bnk.Bank, repl map[uint32][]byte, alignment uint32, out string) (bnk.PatchStats, error) {
	var stats bnk.PatchStats

	patched, err := bnk.Patch(b, repl, &bnk.PatchOptions{Alignment: alignment, Stats: &stats})
	if err != nil {
		return stats, err
	}

	env.logger.Info("patched bank",
		"entries", stats.Entries,
		"replaced", stats.Replaced,
		"original_data_size", stats.OriginalDataSize,
		"new_data_size", stats.NewDataSize,
		"size_change", stats.Delta(),
	)

	err = fileutil.WriteAtomic(out, 0o644, func(w io.Writer) error {
		_, err := patched.WriteTo(w)
		return err
	})

	return stats, err
}

func readReplacement(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", errMissingReplacement, path)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", bnk.ErrIOFailure, err)
	}

	return data, nil
}

func payloadFileName(id uint32) string {
	return strconv.FormatUint(uint64(id), 10) + ".wem"
}

// siblingPath prefixes the base name of path, keeping its directory.
func siblingPath(path, prefix string) string {
	return filepath.Join(filepath.Dir(path), prefix+filepath.Base(path))
}
