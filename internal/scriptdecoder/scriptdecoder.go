// Package scriptdecoder locates Microsoft Script Encoder envelopes in any
// input (pages, ASP sources, mail bodies, raw .vbe/.jse files) and reports
// each decoded script as a child artifact.
package scriptdecoder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RowanDark/scrdec/internal/plugin"
	"github.com/RowanDark/scrdec/internal/screnc"
)

const (
	// Name is the plugin name recorded on results.
	Name = "ScriptDecoder"
	// Version tracks changes to the reported results.
	Version = "2025.03.19"

	// DefaultLookback is how many bytes before an envelope are searched for
	// a language name.
	DefaultLookback = 30

	tagEncoded = "encoded_script"
	tagDecoded = "decoded_script"
)

// scriptTypes are checked in order; a later match overrides an earlier one.
var scriptTypes = []string{"jscript", "vbscript"}

// Options tunes how the decoder attributes a language to each script.
type Options struct {
	// Lookback is the window before an envelope searched for a language
	// name. Zero selects DefaultLookback.
	Lookback int
	// DisableHTMLHint skips parsing the enclosing markup when the lookback
	// window names no language.
	DisableHTMLHint bool
}

func (o Options) lookback() int {
	if o.Lookback <= 0 {
		return DefaultLookback
	}
	return o.Lookback
}

// Capabilities lists what the plugin needs to be granted.
func Capabilities() []plugin.Capability {
	return plugin.CapabilitySet{EmitFeatures: true, AddChildren: true, AddStreams: true}.List()
}

// NewConfig returns a plugin configuration running the decoder.
func NewConfig(opts Options, logger zerolog.Logger) plugin.Config {
	return plugin.Config{
		PluginName:   Name,
		Version:      Version,
		Capabilities: Capabilities(),
		Logger:       logger,
		Hooks: plugin.Hooks{
			OnJob: func(ctx *plugin.Context, job plugin.Job) error {
				return Execute(ctx, job, opts)
			},
		},
	}
}

// Scan runs the decoder against data and returns the recorded result.
func Scan(ctx context.Context, name string, data []byte, opts Options, logger zerolog.Logger) (*plugin.Result, error) {
	return plugin.Run(ctx, NewConfig(opts, logger), plugin.Job{Name: name, Data: data})
}

// Execute reports every envelope in job. For each one it tags the input with
// the envelope location and, when decoding yields any bytes, adds the script
// as a child with a text stream for display.
func Execute(ctx *plugin.Context, job plugin.Job, opts Options) error {
	buf := job.Data
	var hints *markupHints

	for env := range screnc.Envelopes(buf) {
		if err := ctx.Context().Err(); err != nil {
			return err
		}
		if err := ctx.AddFeature(plugin.FeatureValue{
			Name:    "tag",
			Value:   tagEncoded,
			Offset:  env.Start,
			Size:    env.Len(),
			Located: true,
		}); err != nil {
			return err
		}

		relationship := map[string]string{"action": "decoded"}
		if env.Start > 0 {
			relationship["offset"] = fmt.Sprintf("0x%02x", env.Start)
		}

		language := lookbackLanguage(buf, env.Start, opts.lookback())
		if language == "" && !opts.DisableHTMLHint {
			if hints == nil {
				hints = parseMarkup(buf)
			}
			language = hints.languageAt(env.Start)
		}
		childTag := tagDecoded
		if language != "" {
			relationship["language"] = language
			childTag = "decoded_" + language
		}

		decoded := env.Decode()
		if len(decoded) == 0 {
			continue
		}
		ctx.Logger().Debug().
			Int("offset", env.Start).
			Int("size", env.Len()).
			Str("language", language).
			Msg("decoded encoded script")

		child, err := ctx.AddChild(decoded, relationship)
		if err != nil {
			return err
		}
		if err := child.AddFeature(plugin.FeatureValue{Name: "tag", Value: childTag}); err != nil {
			return err
		}
		tags := map[string]string{}
		if display := displayLanguage(language, decoded); display != "" {
			tags["language"] = display
		}
		if err := child.AddStream("text", tags, decoded); err != nil {
			return err
		}
	}
	return nil
}

// lookbackLanguage returns the last script type named in the window of
// lookback bytes before offset, compared case-insensitively.
func lookbackLanguage(buf []byte, offset, lookback int) string {
	window := asciiLower(buf[max(0, offset-lookback):offset])
	found := ""
	for _, t := range scriptTypes {
		if bytes.Contains(window, []byte(t)) {
			found = t
		}
	}
	return found
}

// displayLanguage picks a syntax highlighting name for a decoded script.
func displayLanguage(language string, decoded []byte) string {
	switch {
	case language == "vbscript" || containsAll(decoded, "Dim ", "Sub ", "End"):
		return "visual-basic"
	case language == "jscript" || containsAll(decoded, "document.write", ";"):
		return "javascript"
	default:
		return ""
	}
}

func containsAll(buf []byte, words ...string) bool {
	for _, w := range words {
		if !bytes.Contains(buf, []byte(w)) {
			return false
		}
	}
	return true
}

func asciiLower(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return out
}
