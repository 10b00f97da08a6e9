// Package source turns a command-line argument into the bytes to scan. Besides
// plain files it accepts stdin, literal "#" arguments with optional hex or
// base64 encoding, and single-member password protected ZIP archives.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yeka/zip"

	"github.com/RowanDark/scrdec/internal/cipher"
)

// DefaultPassword is the conventional password for malware sample archives.
const DefaultPassword = "infected"

// ErrNoInput reports that the argument could not be turned into input bytes.
var ErrNoInput = errors.New("no input available")

const (
	prefixHex     = "#h#"
	prefixBase64  = "#b#"
	prefixLiteral = "#"
)

// Kind describes how an argument was interpreted.
type Kind string

const (
	KindStdin   Kind = "stdin"
	KindHex     Kind = "hex"
	KindBase64  Kind = "base64"
	KindLiteral Kind = "literal"
	KindZip     Kind = "zip"
	KindFile    Kind = "file"
)

// Options control how arguments are resolved.
type Options struct {
	// Stdin is read when the argument is empty. Defaults to os.Stdin.
	Stdin io.Reader
	// Password unlocks encrypted archive members. Defaults to DefaultPassword.
	Password string
}

func (o Options) stdin() io.Reader {
	if o.Stdin != nil {
		return o.Stdin
	}
	return os.Stdin
}

func (o Options) password() string {
	if o.Password != "" {
		return o.Password
	}
	return DefaultPassword
}

// Classify reports how Resolve will interpret arg.
func Classify(arg string) Kind {
	switch {
	case arg == "":
		return KindStdin
	case strings.HasPrefix(arg, prefixHex):
		return KindHex
	case strings.HasPrefix(arg, prefixBase64):
		return KindBase64
	case strings.HasPrefix(arg, prefixLiteral):
		return KindLiteral
	case strings.HasSuffix(strings.ToLower(arg), ".zip"):
		return KindZip
	default:
		return KindFile
	}
}

// Resolve returns the bytes named by arg. Every failure wraps ErrNoInput.
func Resolve(ctx context.Context, arg string, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := resolve(ctx, arg, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoInput, err)
	}
	return data, nil
}

func resolve(ctx context.Context, arg string, opts Options) ([]byte, error) {
	switch Classify(arg) {
	case KindStdin:
		data, err := io.ReadAll(opts.stdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	case KindHex:
		return decodeLiteral(ctx, "hex_decode", arg[len(prefixHex):])
	case KindBase64:
		return decodeLiteral(ctx, "base64_decode", arg[len(prefixBase64):])
	case KindLiteral:
		return []byte(arg[len(prefixLiteral):]), nil
	case KindZip:
		return readArchive(arg, opts.password())
	default:
		return readFile(arg)
	}
}

func decodeLiteral(ctx context.Context, opName, literal string) ([]byte, error) {
	op, ok := cipher.GetOperation(opName)
	if !ok {
		return nil, fmt.Errorf("operation %s not registered", opName)
	}
	data, err := op.Execute(ctx, []byte(literal), nil)
	if err != nil {
		return nil, fmt.Errorf("decode literal argument: %w", err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// readArchive extracts the only member of a ZIP archive. Archives holding
// more than one member are returned as raw bytes.
func readArchive(path, password string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()

	if len(r.File) != 1 {
		return readFile(path)
	}
	member := r.File[0]
	if member.IsEncrypted() {
		member.SetPassword(password)
	}
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", member.Name, path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s from %s: %w", member.Name, path, err)
	}
	return data, nil
}
