package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/RowanDark/scrdec/internal/observability/metrics"
	"github.com/RowanDark/scrdec/internal/screnc"
	"github.com/RowanDark/scrdec/internal/source"
)

const noScriptMessage = "No encoded script found!"

const manual = `
Manual:

scrdec reads from the given file or standard input and converts every script
encoded with the Microsoft Script Encoder (VBE/JSE) back to plain text. When a
file holds several encoded blocks they are decoded in order and separated by a
newline; use --first to decode only the first one.

The file can be a ZIP archive holding a single member. Encrypted archives are
opened with the password "infected" unless --password or zip_password says
otherwise.

The encoded script can also be passed as a literal argument. Start the
argument with # to pass the rest of it as the input:
  scrdec "##@~^DgAAAA==\ko$K6,JCV^GJqAQAAA==^#~@"
  Result: MsgBox "Hello"

Prefix the literal with #h# for hexadecimal or #b# for base64:
  scrdec #h#23407E5E4467414141413D3D5C6B6F244B362C4A437F565E474A7141514141413D3D5E237E40
  scrdec #b#I0B+XkRnQUFBQT09XGtvJEs2LEpDf1ZeR0pxQVFBQUE9PV4jfkA=
  Result: MsgBox "Hello"

Decoded output is written as raw bytes. Scripts written on a legacy Windows
code page can be converted for display with --codepage, e.g. --codepage cp1252.
`

func runDecode(c *cli.Context) error {
	if c.Bool(ManFlag.Name) {
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, manual)
		return nil
	}
	if c.NArg() > 1 {
		return cli.Exit("expected at most one file; use the batch command for several", 2)
	}

	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	data, err := source.Resolve(c.Context, c.Args().First(), rt.sourceOptions(c))
	if err != nil {
		metrics.RecordRejectedInput("no_input")
		rt.logger.Debug().Err(err).Msg("input rejected")
		if errors.Is(err, source.ErrNoInput) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}

	out, found := decodeAll(data, c.Bool(FirstFlag.Name))
	if !found {
		fmt.Fprintln(c.App.Writer, noScriptMessage)
		return nil
	}
	rt.logger.Debug().Int("bytes", len(out)).Msg("decoded")

	out, err = transcode(out, c.String(CodepageFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

// decodeAll decodes every envelope in data, or only the leftmost when first
// is set, joining the scripts with a newline.
func decodeAll(data []byte, first bool) ([]byte, bool) {
	var parts [][]byte
	for env := range screnc.Envelopes(data) {
		parts = append(parts, env.Decode())
		if first {
			break
		}
	}
	metrics.RecordEnvelopes("cli", len(parts))
	if len(parts) == 0 {
		return nil, false
	}
	return bytes.Join(parts, []byte("\n")), true
}
