package main

import "github.com/urfave/cli/v2"

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Additional configuration file (YAML, or TOML by extension)",
		EnvVars: []string{"SCRDEC_CONFIG"},
	}

	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (trace, debug, info, warn, error, off)",
	}

	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format (console, json)",
	}

	PasswordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "Password for encrypted ZIP archives",
	}

	LookbackFlag = &cli.IntFlag{
		Name:  "lookback",
		Usage: "Bytes before an envelope searched for a script language",
	}

	ManFlag = &cli.BoolFlag{
		Name:    "man",
		Aliases: []string{"m"},
		Usage:   "Print the manual",
	}

	FirstFlag = &cli.BoolFlag{
		Name:  "first",
		Usage: "Decode only the first envelope",
	}

	CodepageFlag = &cli.StringFlag{
		Name:  "codepage",
		Usage: "Convert decoded output from this code page to UTF-8 (e.g. cp1252, cp437, iso-8859-1)",
	}

	OutputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Findings JSONL file (defaults to <output_dir>/findings.jsonl)",
	}

	StoreFlag = &cli.StringFlag{
		Name:  "store",
		Usage: "SQLite database that keeps scanned inputs, decoded scripts and findings",
	}

	PeelFlag = &cli.BoolFlag{
		Name:  "peel",
		Usage: "Strip base64, hex or URL encoding wrapped around an encoded script",
	}

	WorkersFlag = &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "Number of concurrent decode workers",
	}

	ListenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "gRPC listen address",
	}

	MetricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Prometheus metrics listen address (empty disables)",
	}

	AuthTokenFlag = &cli.StringFlag{
		Name:  "auth-token",
		Usage: "Bearer token required from gRPC clients",
	}

	AuditLogFlag = &cli.StringFlag{
		Name:  "audit-log",
		Usage: "Append audit events to this file",
	}

	TraceFileFlag = &cli.StringFlag{
		Name:  "trace-file",
		Usage: "Write spans as JSON lines to this file",
	}

	TraceRatioFlag = &cli.Float64Flag{
		Name:  "trace-ratio",
		Usage: "Fraction of requests traced (0 disables)",
		Value: 1,
	}
)
