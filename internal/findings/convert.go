package findings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/scrdec/internal/plugin"
)

const (
	// TypeEncodedScript marks the location of an envelope in a target.
	TypeEncodedScript = "encoded_script"

	evidenceLimit = 256
)

// FromResult converts a plugin result into findings: one per located
// envelope, followed by one per decoded script.
func FromResult(res *plugin.Result) ([]Finding, error) {
	return fromResultWithClock(res, time.Now)
}

func fromResultWithClock(res *plugin.Result, clock func() time.Time) ([]Finding, error) {
	if res == nil {
		return nil, errors.New("result is nil")
	}
	pluginID := strings.TrimSpace(res.Plugin)
	if pluginID == "" {
		return nil, errors.New("plugin id is required")
	}
	detectedAt := NewTimestamp(clock())

	var out []Finding
	for _, feature := range res.Features {
		if feature.Name != "tag" || feature.Value != TypeEncodedScript || !feature.Located {
			continue
		}
		f := Finding{
			Version:    SchemaVersion,
			ID:         NewID(),
			Plugin:     pluginID,
			Type:       TypeEncodedScript,
			Message:    fmt.Sprintf("Script Encoder envelope at offset 0x%02x (%d bytes)", feature.Offset, feature.Size),
			Target:     res.Target,
			Offset:     feature.Offset,
			Size:       feature.Size,
			SHA256:     res.SHA256,
			Severity:   SeverityMedium,
			DetectedAt: detectedAt,
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	for _, child := range res.Children {
		f, err := fromChild(pluginID, res.Target, child, detectedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func fromChild(pluginID, target string, child *plugin.Child, detectedAt Timestamp) (Finding, error) {
	kind := "decoded_script"
	for _, feature := range child.Features {
		if feature.Name == "tag" {
			kind = feature.Value
			break
		}
	}

	offset := 0
	if raw, ok := child.Relationship["offset"]; ok {
		parsed, err := strconv.ParseInt(strings.TrimPrefix(raw, "0x"), 16, 64)
		if err != nil {
			return Finding{}, fmt.Errorf("invalid offset relationship %q: %w", raw, err)
		}
		offset = int(parsed)
	}

	meta := map[string]string{}
	for k, v := range child.Relationship {
		if k == "offset" || k == "language" {
			continue
		}
		meta["rel_"+k] = v
	}
	for _, s := range child.Streams {
		if lang := s.Tags["language"]; lang != "" {
			meta["display_language"] = lang
		}
	}
	if len(meta) == 0 {
		meta = nil
	}

	language := child.Relationship["language"]
	message := "Decoded encoded script"
	if language != "" {
		message = fmt.Sprintf("Decoded encoded %s", language)
	}

	f := Finding{
		Version:    SchemaVersion,
		ID:         NewID(),
		Plugin:     pluginID,
		Type:       kind,
		Message:    message,
		Target:     target,
		Offset:     offset,
		Size:       child.Size,
		Language:   language,
		SHA256:     child.SHA256,
		Evidence:   preview(child.Data),
		Severity:   SeverityInfo,
		DetectedAt: detectedAt,
		Metadata:   meta,
	}
	if err := f.Validate(); err != nil {
		return Finding{}, err
	}
	return f, nil
}

// preview returns a printable prefix of decoded script text.
func preview(data []byte) string {
	if len(data) > evidenceLimit {
		data = data[:evidenceLimit]
	}
	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	return strings.TrimSpace(text)
}

// ToStruct renders a finding as a protobuf Struct for RPC responses.
func ToStruct(f Finding) (*structpb.Struct, error) {
	fields := map[string]any{
		"version":  f.Version,
		"id":       f.ID,
		"plugin":   f.Plugin,
		"type":     f.Type,
		"message":  f.Message,
		"offset":   f.Offset,
		"size":     f.Size,
		"severity": string(f.Severity),
		"ts":       f.Timestamp().Format(time.RFC3339),
	}
	optional := map[string]string{
		"target":   f.Target,
		"language": f.Language,
		"sha256":   f.SHA256,
		"evidence": f.Evidence,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	if len(f.Metadata) > 0 {
		meta := make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			meta[k] = v
		}
		fields["meta"] = meta
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode finding %s: %w", f.ID, err)
	}
	return s, nil
}
