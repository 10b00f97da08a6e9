package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RowanDark/scrdec/internal/redact"
)

// EventType names an audited action.
type EventType string

const (
	EventEnvelopeFound    EventType = "envelope_found"
	EventScriptDecoded    EventType = "script_decoded"
	EventInputRejected    EventType = "input_rejected"
	EventCapabilityDenied EventType = "capability_denied"
	EventRPCCall          EventType = "rpc_call"
	EventRPCDenied        EventType = "rpc_denied"
	EventArtifactStored   EventType = "artifact_stored"
)

type Decision string

const (
	DecisionInfo  Decision = "info"
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// AuditEvent is one JSON line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	Target    string         `json:"target,omitempty"`
	EventType EventType      `json:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Decision  Decision       `json:"decision,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// Option configures where audit events are written.
type Option func(*auditSinks) error

type auditSinks struct {
	stdout  bool
	writers []io.Writer
	files   []*os.File
}

// WithWriter adds w as a destination.
func WithWriter(w io.Writer) Option {
	return func(s *auditSinks) error {
		if w == nil {
			return errors.New("writer cannot be nil")
		}
		s.writers = append(s.writers, w)
		return nil
	}
}

// WithFile appends events to the file at path, creating it with mode 0600.
func WithFile(path string) Option {
	return func(s *auditSinks) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("file path cannot be empty")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		s.files = append(s.files, f)
		s.writers = append(s.writers, f)
		return nil
	}
}

// WithoutStdout stops events from also going to standard output.
func WithoutStdout() Option {
	return func(s *auditSinks) error {
		s.stdout = false
		return nil
	}
}

// AuditLogger writes AuditEvents as JSON lines. Reasons and metadata are
// passed through the redactor before they are written. A nil *AuditLogger
// discards everything given to Record.
type AuditLogger struct {
	component string
	log       zerolog.Logger
	files     *fileSet
}

type fileSet struct {
	mu    sync.Mutex
	files []*os.File
}

func NewAuditLogger(component string, opts ...Option) (*AuditLogger, error) {
	sinks := &auditSinks{stdout: true}
	for _, opt := range opts {
		if err := opt(sinks); err != nil {
			for _, f := range sinks.files {
				_ = f.Close()
			}
			return nil, err
		}
	}
	writers := sinks.writers
	if sinks.stdout {
		writers = append([]io.Writer{os.Stdout}, writers...)
	}
	if len(writers) == 0 {
		return nil, errors.New("no writers configured for audit logger")
	}
	out := zerolog.SyncWriter(io.MultiWriter(writers...))
	return &AuditLogger{
		component: component,
		log:       zerolog.New(out),
		files:     &fileSet{files: sinks.files},
	}, nil
}

func MustNewAuditLogger(component string, opts ...Option) *AuditLogger {
	l, err := NewAuditLogger(component, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// WithComponent returns a logger sharing l's destinations under another
// component name. Closing it leaves the destinations open.
func (l *AuditLogger) WithComponent(component string) *AuditLogger {
	if l == nil {
		return nil
	}
	return &AuditLogger{component: component, log: l.log}
}

// Close closes files opened through WithFile.
func (l *AuditLogger) Close() error {
	if l == nil || l.files == nil {
		return nil
	}
	l.files.mu.Lock()
	defer l.files.mu.Unlock()
	var first error
	for _, f := range l.files.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files.files = nil
	return first
}

// Emit writes event, filling in the timestamp and component when unset.
func (l *AuditLogger) Emit(event AuditEvent) error {
	if l == nil {
		return errors.New("nil audit logger")
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	component := event.Component
	if component == "" {
		component = l.component
	}

	e := l.log.Log().
		Str("timestamp", ts.UTC().Format(time.RFC3339Nano)).
		Str("component", component).
		Str("event_type", string(event.EventType))
	if event.Target != "" {
		e = e.Str("target", event.Target)
	}
	if event.Decision != "" {
		e = e.Str("decision", string(event.Decision))
	}
	if reason := redact.String(event.Reason); reason != "" {
		e = e.Str("reason", reason)
	}
	if len(event.Metadata) > 0 {
		e = e.Interface("metadata", redact.Map(event.Metadata))
	}
	e.Send()
	return nil
}

// Record emits an event. A nil logger is a no-op.
func (l *AuditLogger) Record(eventType EventType, target string, decision Decision, metadata map[string]any) {
	if l == nil {
		return
	}
	_ = l.Emit(AuditEvent{EventType: eventType, Target: target, Decision: decision, Metadata: metadata})
}
