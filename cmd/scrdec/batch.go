package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RowanDark/scrdec/internal/observability/metrics"
	"github.com/RowanDark/scrdec/internal/plugin"
	"github.com/RowanDark/scrdec/internal/scriptdecoder"
	"github.com/RowanDark/scrdec/internal/source"
	"github.com/RowanDark/scrdec/internal/worker"
)

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Decode many inputs concurrently",
		ArgsUsage: "<file>...",
		Flags:     []cli.Flag{WorkersFlag, FirstFlag, CodepageFlag},
		Action:    runBatch,
	}
}

func runBatch(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("batch requires at least one file", 2)
	}
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	workers := rt.cfg.Workers
	if c.IsSet(WorkersFlag.Name) {
		workers = c.Int(WorkersFlag.Name)
	}
	if workers < 1 {
		return cli.Exit("workers must be at least 1", 2)
	}

	opts := rt.sourceOptions(c)
	first := c.Bool(FirstFlag.Name)
	codepage := c.String(CodepageFlag.Name)
	if _, err := transcode(nil, codepage); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	jobs := make([]worker.Job, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		jobs = append(jobs, worker.NewJob(arg, nil))
	}

	handler := func(ctx context.Context, job worker.Job) (*plugin.Result, error) {
		metrics.JobStarted()
		defer metrics.JobFinished()

		data, err := source.Resolve(ctx, job.Name, opts)
		if err != nil {
			metrics.RecordRejectedInput("no_input")
			return nil, err
		}
		start := time.Now()
		res, err := scriptdecoder.Scan(ctx, job.Name, data, rt.decoderOptions(), rt.logger)
		metrics.ObserveScanDuration(ctx, "batch", time.Since(start))
		return res, err
	}

	results, err := worker.Run(c.Context, workers, jobs, handler)
	if err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(c.App.Writer)
		}
		fmt.Fprintf(c.App.Writer, "==> %s <==\n", res.Name)
		if res.Error != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", res.Name, res.Error)
			continue
		}
		out := childScripts(res.Result, first)
		if len(out) == 0 {
			fmt.Fprintln(c.App.Writer, noScriptMessage)
			continue
		}
		out, err = transcode(out, codepage)
		if err != nil {
			return err
		}
		if _, err := c.App.Writer.Write(append(out, '\n')); err != nil {
			return err
		}
	}
	rt.logger.Info().Int("inputs", len(results)).Int("failed", failed).Int("workers", workers).Msg("batch complete")
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d inputs failed", failed, len(results)), 1)
	}
	return nil
}

// childScripts joins the decoded scripts of a result in envelope order.
func childScripts(res *plugin.Result, first bool) []byte {
	if res == nil {
		return nil
	}
	var out []byte
	for i, child := range res.Children {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, child.Data...)
		if first {
			break
		}
	}
	return out
}
