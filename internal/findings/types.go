// Package findings models what a scan reports: one finding per encoded
// script located in a target and one per script recovered from it. Findings
// are persisted as JSON lines and fanned out to live subscribers.
package findings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SchemaVersion is written on every persisted finding.
const SchemaVersion = "1.0"

// Severity is a short lowercase code.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "med"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "crit"
)

// ParseSeverity normalises s and rejects unknown codes.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	switch sev {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("invalid severity: %q", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if _, err := ParseSeverity(string(s)); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Timestamp is a UTC time truncated to the second and encoded as RFC 3339.
// The zero value encodes as "".
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp(t.UTC().Truncate(time.Second))
}

func (t Timestamp) Time() time.Time           { return time.Time(t) }
func (t Timestamp) IsZero() bool              { return time.Time(t).IsZero() }
func (t Timestamp) Equal(other time.Time) bool { return time.Time(t).Equal(other) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw = strings.TrimSpace(raw); raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid ts timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// NewID returns a fresh ULID. IDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

// Finding records one encoded script located in a target, or one script
// recovered from it.
type Finding struct {
	Version    string            `json:"version"`
	ID         string            `json:"id"`
	Plugin     string            `json:"plugin"`
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Target     string            `json:"target,omitempty"`
	Offset     int               `json:"offset"`
	Size       int               `json:"size,omitempty"`
	Language   string            `json:"language,omitempty"`
	SHA256     string            `json:"sha256,omitempty"`
	Evidence   string            `json:"evidence,omitempty"`
	Severity   Severity          `json:"severity"`
	DetectedAt Timestamp         `json:"ts"`
	Metadata   map[string]string `json:"meta,omitempty"`
}

// Validate checks a finding before it is persisted.
func (f Finding) Validate() error {
	if v := strings.TrimSpace(f.Version); v != SchemaVersion {
		return fmt.Errorf("unsupported version %q", f.Version)
	}
	if err := validateID(f.ID); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	for _, field := range []struct{ name, value string }{
		{"plugin", f.Plugin},
		{"type", f.Type},
		{"message", f.Message},
	} {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}
	if _, err := ParseSeverity(string(f.Severity)); err != nil {
		return err
	}
	if f.DetectedAt.IsZero() {
		return errors.New("ts is required")
	}
	if f.Offset < 0 || f.Size < 0 {
		return fmt.Errorf("invalid location offset=%d size=%d", f.Offset, f.Size)
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	if strings.ToUpper(id) != id {
		return errors.New("ulid must be upper-case")
	}
	_, err := ulid.ParseStrict(id)
	return err
}

// Clone copies the finding so subscribers cannot share its metadata map.
func (f Finding) Clone() Finding {
	out := f
	out.Metadata = maps.Clone(f.Metadata)
	return out
}

// Timestamp returns the detection time in UTC.
func (f Finding) Timestamp() time.Time {
	return f.DetectedAt.Time().UTC()
}
