package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RowanDark/scrdec/internal/cipher"
	"github.com/RowanDark/scrdec/internal/findings"
	"github.com/RowanDark/scrdec/internal/observability/metrics"
	"github.com/RowanDark/scrdec/internal/plugin"
	"github.com/RowanDark/scrdec/internal/scriptdecoder"
	"github.com/RowanDark/scrdec/internal/source"
	"github.com/RowanDark/scrdec/internal/store"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Locate and decode encoded scripts, recording findings as JSON lines",
		ArgsUsage: "<file>...",
		Flags:     []cli.Flag{OutputFlag, StoreFlag, PeelFlag},
		Action:    runScan,
	}
}

// scanner runs the decoder plugin and forwards its findings to the
// configured sinks.
type scanner struct {
	rt     *runtime
	writer *findings.Writer
	store  *store.Store
	peel   bool
}

type scanOutcome struct {
	result    *plugin.Result
	findings  []findings.Finding
	layers    []string
	envelopes int
}

func runScan(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("scan requires at least one file", 2)
	}
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	sc := &scanner{rt: rt, peel: c.Bool(PeelFlag.Name)}
	path := c.String(OutputFlag.Name)
	if path == "" {
		path = filepath.Join(rt.cfg.OutputDir, "findings.jsonl")
	}
	sc.writer = findings.NewWriter(path)
	defer sc.writer.Close()

	storePath := c.String(StoreFlag.Name)
	if storePath == "" {
		storePath = rt.cfg.StorePath
	}
	if storePath != "" {
		st, err := store.Open(storePath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("open store: %v", err), 1)
		}
		defer st.Close()
		sc.store = st
	}

	failed := 0
	for _, arg := range c.Args().Slice() {
		outcome, err := sc.scan(c.Context, arg, rt.sourceOptions(c))
		if err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", arg, err)
			continue
		}
		fmt.Fprintln(c.App.Writer, summarize(arg, outcome))
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d inputs failed", failed, c.NArg()), 1)
	}
	return nil
}

func (s *scanner) scan(ctx context.Context, arg string, opts source.Options) (*scanOutcome, error) {
	data, err := source.Resolve(ctx, arg, opts)
	if err != nil {
		metrics.RecordRejectedInput("no_input")
		return nil, err
	}

	var layers []string
	if s.peel {
		peeled, pipeline, err := cipher.Peel(ctx, data, cipher.DefaultPeelDepth)
		if err != nil {
			return nil, fmt.Errorf("peel: %w", err)
		}
		data, layers = peeled, pipeline.Names()
	}

	start := time.Now()
	res, err := scriptdecoder.Scan(ctx, arg, data, s.rt.decoderOptions(), s.rt.logger)
	metrics.ObserveScanDuration(ctx, "cli", time.Since(start))
	if err != nil {
		return nil, err
	}
	found, err := findings.FromResult(res)
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		if err := s.writer.Write(f); err != nil {
			return nil, fmt.Errorf("write finding: %w", err)
		}
	}
	if s.store != nil {
		if _, err := s.store.PutResult(ctx, res, data); err != nil {
			return nil, err
		}
		for _, f := range found {
			if err := s.store.SaveFinding(ctx, f); err != nil {
				return nil, err
			}
		}
	}
	envelopes := 0
	for _, f := range found {
		if f.Type == findings.TypeEncodedScript {
			envelopes++
		}
	}
	metrics.RecordEnvelopes("cli", envelopes)
	for _, child := range res.Children {
		metrics.RecordDecoded(child.Relationship["language"], child.Size)
	}
	s.rt.logger.Debug().Str("target", arg).Str("status", string(res.Status)).Int("children", len(res.Children)).Msg("scanned")
	return &scanOutcome{result: res, findings: found, layers: layers, envelopes: envelopes}, nil
}

func summarize(arg string, o *scanOutcome) string {
	if o.envelopes == 0 {
		return fmt.Sprintf("%s: %s", arg, noScriptMessage)
	}
	var langs []string
	for _, child := range o.result.Children {
		lang := child.Relationship["language"]
		if lang == "" {
			lang = "script"
		}
		langs = append(langs, lang)
	}
	line := fmt.Sprintf("%s: %d envelope(s), %d decoded [%s]", arg, o.envelopes, len(o.result.Children), strings.Join(langs, ", "))
	if len(o.layers) > 0 {
		line += " via " + strings.Join(o.layers, " > ")
	}
	return line
}
