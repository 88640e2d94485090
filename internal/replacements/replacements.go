// Package replacements loads payload replacement maps from JSON or YAML files.
//
// A replacement file maps payload IDs to file names:
//
//	{"12345": "new_voice.wem", "67890": "67890.wem"}
//
// Numeric values are accepted and coerced to "<n>.wem".
package replacements

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/cwbudde/bnk"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported replacement file format")
	// ErrInvalidEntry is returned when a key is not a payload ID or a value is
	// not a file name or number.
	ErrInvalidEntry = errors.New("invalid replacement entry")
)

// Format is the encoding of a replacement file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}

	return "json"
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yml", ".yaml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Entry is one payload replacement.
type Entry struct {
	ID   uint32
	File string
	// Coerced is set when File was derived from a numeric value.
	Coerced bool
}

// Config is a loaded replacement file.
type Config struct {
	// Path is the file the entries were read from.
	Path    string
	Entries []Entry
}

// Load reads and parses a replacement file.
func Load(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bnk.ErrIOFailure, err)
	}

	entries, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Config{Path: path, Entries: entries}, nil
}

type pair struct {
	key   any
	value any
}

// Parse decodes a replacement map. Entries are returned sorted by ID.
func Parse(data []byte, format Format) ([]Entry, error) {
	var pairs []pair

	switch format {
	case FormatYAML:
		var ms yaml.MapSlice
		if err := yaml.Unmarshal(data, &ms); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}

		for _, item := range ms {
			pairs = append(pairs, pair{key: item.Key, value: item.Value})
		}
	default:
		var err error
		if pairs, err = jsonPairs(data); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	}

	entries := make([]Entry, 0, len(pairs))
	seen := make(map[uint32]bool, len(pairs))

	for _, p := range pairs {
		entry, err := parseEntry(p)
		if err != nil {
			return nil, err
		}

		if seen[entry.ID] {
			return nil, fmt.Errorf("%w: payload %d listed twice", bnk.ErrDuplicateID, entry.ID)
		}

		seen[entry.ID] = true
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return entries, nil
}

// jsonPairs reads the members of a JSON object in document order, keeping
// repeated keys so they can be reported.
func jsonPairs(data []byte) ([]pair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top level must be an object, got %v", ErrInvalidEntry, tok)
	}

	var pairs []pair

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key %v", ErrInvalidEntry, tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		pairs = append(pairs, pair{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return pairs, nil
}

func parseEntry(p pair) (Entry, error) {
	key := strings.TrimSpace(fmt.Sprint(p.key))

	id, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: key %q is not a payload ID", ErrInvalidEntry, key)
	}

	entry := Entry{ID: uint32(id)}

	switch v := p.value.(type) {
	case string:
		if v == "" {
			return Entry{}, fmt.Errorf("%w: payload %d has an empty file name", ErrInvalidEntry, id)
		}

		entry.File = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Entry{}, fmt.Errorf("%w: payload %d value %q", ErrInvalidEntry, id, v)
		}

		entry.File, entry.Coerced = coerce(f), true
	case uint64:
		entry.File, entry.Coerced = strconv.FormatUint(v, 10)+".wem", true
	case int64:
		entry.File, entry.Coerced = strconv.FormatInt(v, 10)+".wem", true
	case int:
		entry.File, entry.Coerced = strconv.Itoa(v)+".wem", true
	case float64:
		entry.File, entry.Coerced = coerce(v), true
	default:
		return Entry{}, fmt.Errorf("%w: payload %d must map to a file name or number, got %T",
			ErrInvalidEntry, id, p.value)
	}

	return entry, nil
}

func coerce(f float64) string {
	return strconv.FormatInt(int64(math.Trunc(f)), 10) + ".wem"
}

// Resolve maps every entry to a file path. Relative names are looked up in
// wemDir first, then next to the config file. When neither exists the name is
// joined to wemDir, or to the config directory when wemDir is empty.
func (c *Config) Resolve(wemDir string) map[uint32]string {
	configDir := filepath.Dir(c.Path)
	out := make(map[uint32]string, len(c.Entries))

	for _, e := range c.Entries {
		out[e.ID] = resolvePath(e.File, wemDir, configDir)
	}

	return out
}

func resolvePath(name, wemDir, configDir string) string {
	if filepath.IsAbs(name) {
		return name
	}

	if wemDir != "" {
		if p := filepath.Join(wemDir, name); exists(p) {
			return p
		}
	}

	if p := filepath.Join(configDir, name); exists(p) {
		return p
	}

	if wemDir != "" {
		return filepath.Join(wemDir, name)
	}

	return filepath.Join(configDir, name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Encode writes entries in the passed format, keyed by decimal ID in entry
// order. Coerced values are written as file names.
func Encode(entries []Entry, format Format) ([]byte, error) {
	if format == FormatYAML {
		ms := make(yaml.MapSlice, 0, len(entries))
		for _, e := range entries {
			ms = append(ms, yaml.MapItem{Key: strconv.FormatUint(uint64(e.ID), 10), Value: e.File})
		}

		return yaml.MarshalWithOptions(ms, yaml.Indent(2))
	}

	var buf bytes.Buffer

	buf.WriteString("{")

	for i, e := range entries {
		if i > 0 {
			buf.WriteString(",")
		}

		value, err := json.Marshal(e.File)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&buf, "\n  \"%d\": %s", e.ID, value)
	}

	if len(entries) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("}\n")

	return buf.Bytes(), nil
}
