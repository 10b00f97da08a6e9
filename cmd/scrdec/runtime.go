package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/RowanDark/scrdec/internal/config"
	"github.com/RowanDark/scrdec/internal/logging"
	"github.com/RowanDark/scrdec/internal/scriptdecoder"
	"github.com/RowanDark/scrdec/internal/source"
)

// runtime is the resolved configuration shared by every command.
type runtime struct {
	cfg    config.Config
	logger zerolog.Logger
}

func loadRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String(ConfigFlag.Name))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("load config: %v", err), 2)
	}
	if c.IsSet(LogLevelFlag.Name) {
		cfg.LogLevel = c.String(LogLevelFlag.Name)
	}
	if c.IsSet(LogFormatFlag.Name) {
		cfg.LogFormat = c.String(LogFormatFlag.Name)
	}
	if c.IsSet(PasswordFlag.Name) {
		cfg.ZipPassword = c.String(PasswordFlag.Name)
	}
	if c.IsSet(LookbackFlag.Name) {
		cfg.Lookback = c.Int(LookbackFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}

	logger := logging.New("scrdec", logging.Options{
		Level:  cfg.LogLevel,
		Format: logging.Format(cfg.LogFormat),
		Out:    c.App.ErrWriter,
	})
	return &runtime{cfg: cfg, logger: logger}, nil
}

func (rt *runtime) sourceOptions(c *cli.Context) source.Options {
	return source.Options{Stdin: c.App.Reader, Password: rt.cfg.ZipPassword}
}

func (rt *runtime) decoderOptions() scriptdecoder.Options {
	return scriptdecoder.Options{Lookback: rt.cfg.Lookback}
}

var codepages = map[string]encoding.Encoding{
	"cp437":  charmap.CodePage437,
	"cp850":  charmap.CodePage850,
	"cp1250": charmap.Windows1250,
	"cp1251": charmap.Windows1251,
	"cp1252": charmap.Windows1252,
	"cp1253": charmap.Windows1253,
	"cp1254": charmap.Windows1254,
	"cp1257": charmap.Windows1257,
}

// lookupCodepage resolves a code page name, accepting cpNNNN shorthands as
// well as IANA names such as windows-1252 or ISO-8859-1.
func lookupCodepage(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := codepages[key]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported code page %q", name)
	}
	return enc, nil
}

// transcode converts decoded script bytes from a legacy code page to UTF-8.
// An empty name leaves the bytes untouched.
func transcode(data []byte, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return data, nil
	}
	enc, err := lookupCodepage(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("transcode from %s: %w", name, err)
	}
	return out, nil
}
