// Package cipher provides the byte transformations scrdec chains around
// Script Encoder payloads.
//
// # Overview
//
// Encoded scripts rarely arrive bare. Samples are handed over as hex or
// Base64 literals, and pages sometimes wrap the #@~^ envelope in another
// transport encoding. Cipher offers:
//   - a registry of named operations (base64, base64url, url, hex and the
//     screnc operations backed by package screnc)
//   - detection of the encoding of an input
//   - pipelines that chain operations and, where every step has an inverse,
//     reverse them
//   - Peel, which strips transport layers until an envelope is visible
//
// # Quick Start
//
//	op, _ := cipher.GetOperation("screnc_decode")
//	script, _ := op.Execute(ctx, page, nil)
//
// # Auto-Detection
//
//	detector := cipher.NewSmartDetector()
//	results, _ := detector.Detect(ctx, input)
//
//	for _, r := range results {
//	    fmt.Printf("%s (%.0f%% confidence): %s\n",
//	        r.Encoding, r.Confidence*100, r.Reasoning)
//	}
//
// # Transformation Pipelines
//
//	pipeline := cipher.NewPipeline("base64_decode", "screnc_decode")
//	script, err := pipeline.Execute(ctx, input)
//
// # Operations
//
//   - base64_encode / base64_decode
//   - base64url_encode / base64url_decode
//   - url_encode / url_decode
//   - hex_encode / hex_decode
//   - screnc_decode (param strict)
//   - screnc_extract (param first)
//
// # Thread Safety
//
// All operations are stateless and safe for concurrent use. The registry is
// guarded by a read-write mutex.
package cipher
