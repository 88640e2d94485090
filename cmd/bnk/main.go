// Command bnk inspects soundbanks, extracts embedded payloads and writes
// patched banks with payloads replaced.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/bnk"
	"github.com/cwbudde/bnk/internal/fileutil"
)

// Globals are the flags shared by every command.
type Globals struct {
	BigEndian bool   `name:"big-endian" env:"BNK_BIG_ENDIAN" help:"Read and write multi-byte fields as big endian"`
	Verbose   bool   `short:"v" help:"Log debug messages"`
	LogFormat string `name:"log-format" enum:"text,json" default:"text" help:"Log output format (text|json)"`
}

// CLI is the command grammar.
type CLI struct {
	Globals

	Info       InfoCmd       `cmd:"" help:"List embedded payloads and bank totals"`
	Extract    ExtractCmd    `cmd:"" help:"Write one payload to a file"`
	ExtractAll ExtractAllCmd `cmd:"" name:"extract-all" help:"Write every payload to <id>.wem in a directory"`
	ReplaceOne ReplaceOneCmd `cmd:"" name:"replace-one" help:"Replace one payload and save the bank"`
	Patch      PatchCmd      `cmd:"" help:"Replace payloads listed in a JSON or YAML file"`
	Events     EventsCmd     `cmd:"" help:"Resolve every event to the payloads it can play"`
	JSONToYAML JSONToYAMLCmd `cmd:"" name:"json-to-yaml" help:"Convert a replacement file from JSON to YAML"`
	YAMLToJSON YAMLToJSONCmd `cmd:"" name:"yaml-to-json" help:"Convert a replacement file from YAML to JSON"`
}

// environment is bound into every command's Run method.
type environment struct {
	out    io.Writer
	logger *slog.Logger
	order  binary.ByteOrder
}

func newLogger(w io.Writer, g *Globals) *slog.Logger {
	level := slog.LevelInfo
	if g.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}

			return a
		},
	}

	if g.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// loadBank reads and decodes a bank. The global byte order replaces opts.Order.
func (e *environment) loadBank(path string, opts bnk.Options) (*bnk.Bank, error) {
	data, err := fileutil.ReadInput(path)
	if err != nil {
		return nil, err
	}

	opts.Order = e.order

	b, err := bnk.Decode(data, &opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	e.logger.Debug("loaded bank", "path", path, "bytes", len(data), "payloads", b.Index.Len())

	return b, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "bnk: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out, errOut io.Writer) error {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name("bnk"),
		kong.Description("Read, analyze and patch soundbanks."),
		kong.Writers(out, errOut),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	env := &environment{
		out:    out,
		logger: newLogger(errOut, &cli.Globals),
		order:  binary.LittleEndian,
	}
	if cli.BigEndian {
		env.order = binary.BigEndian
	}

	return ctx.Run(env)
}
