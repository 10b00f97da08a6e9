// Package screnc locates and decodes scripts obfuscated by the Microsoft
// Script Encoder (screnc.exe), the scheme behind VBScript.Encode and
// JScript.Encode.
//
// # Envelope
//
// An encoded script is wrapped as
//
//	#@~^ XXXXXX == <payload> XXXXXX == ^#~@
//
// where each XXXXXX is six opaque bytes (a length header and a checksum).
// Envelopes finds every occurrence in a buffer, shortest payload first:
//
//	for env := range screnc.Envelopes(buf) {
//	    fmt.Printf("%d+%d: %s\n", env.Start, env.Len(), env.Decode())
//	}
//
// # Decoding
//
// Decode first expands the encoder's escapes (@& @# @* @! @$) and then maps
// every printable byte and tab through a three-column substitution key. The
// column is chosen by the byte's position modulo 64. '<', '>' and '@' are
// never substituted.
//
// Decoding has no integrity check: any input produces output, and the same
// input always produces the same output. All functions are safe for
// concurrent use; the key tables are never written after initialisation.
package screnc
