// Command scrdec recovers VBScript and JScript hidden by the Microsoft Script
// Encoder (.vbe/.jse files and #@~^ blocks embedded in pages).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if coder, ok := err.(cli.ExitCoder); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "scrdec",
		Usage:     "Decode scripts encoded with the Microsoft Script Encoder",
		UsageText: "scrdec [options] [file]",
		Version:   version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			ConfigFlag,
			LogLevelFlag,
			LogFormatFlag,
			PasswordFlag,
			LookbackFlag,
			ManFlag,
			FirstFlag,
			CodepageFlag,
		},
		Action: runDecode,
		Commands: []*cli.Command{
			scanCommand(),
			batchCommand(),
			serveCommand(),
			versionCommand(),
		},
		// main applies exit codes.
		ExitErrHandler:  func(*cli.Context, error) {},
		HideHelpCommand: true,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the scrdec version",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return cli.Exit("version takes no arguments", 2)
			}
			fmt.Fprintln(c.App.Writer, version)
			return nil
		},
	}
}
