// Package plugin runs analysis hooks against a single input and records what
// they report: located features, child artifacts derived from the input, and
// display streams. Data is addressed by its SHA-256 digest.
package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Capability represents a permission that must be granted to the plugin
// before it may report a given kind of result.
type Capability string

const (
	// CapabilityEmitFeatures allows the plugin to tag the input with features.
	CapabilityEmitFeatures Capability = "CAP_EMIT_FEATURES"
	// CapabilityAddChildren allows the plugin to attach derived artifacts.
	CapabilityAddChildren Capability = "CAP_ADD_CHILDREN"
	// CapabilityAddStreams allows the plugin to attach display streams.
	CapabilityAddStreams Capability = "CAP_ADD_STREAMS"
)

// CapabilityError is returned when a hook uses a capability it was not granted.
type CapabilityError struct {
	Capability Capability
}

func (e CapabilityError) Error() string {
	return fmt.Sprintf("capability %s not granted", e.Capability)
}

// Status summarises how a run ended.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusCompletedEmpty Status = "completed_empty"
	StatusError          Status = "error"
)

// Job is one input handed to a plugin.
type Job struct {
	Name string
	Data []byte
}

// SHA256 returns the hex digest of the job data.
func (j Job) SHA256() string {
	return Digest(j.Data)
}

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FeatureValue is a named value, optionally tied to a byte range of the
// entity it describes.
type FeatureValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Offset  int    `json:"offset,omitempty"`
	Size    int    `json:"size,omitempty"`
	Located bool   `json:"located,omitempty"`
}

// Stream is alternative content attached for display, such as the text of a
// decoded script with a syntax highlighting hint.
type Stream struct {
	Label  string            `json:"label"`
	Tags   map[string]string `json:"tags,omitempty"`
	SHA256 string            `json:"sha256"`
	Data   []byte            `json:"-"`
}

// Child is an artifact derived from the job input.
type Child struct {
	SHA256       string            `json:"sha256"`
	Size         int               `json:"size"`
	Relationship map[string]string `json:"relationship,omitempty"`
	Features     []FeatureValue    `json:"features,omitempty"`
	Streams      []Stream          `json:"streams,omitempty"`
	Data         []byte            `json:"-"`
}

// Result captures everything a plugin reported for one job.
type Result struct {
	Plugin   string         `json:"plugin"`
	Version  string         `json:"version"`
	Target   string         `json:"target,omitempty"`
	SHA256   string         `json:"sha256"`
	Status   Status         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Features []FeatureValue `json:"features,omitempty"`
	Children []*Child       `json:"children,omitempty"`
	Streams  []Stream       `json:"streams,omitempty"`
}

// JobHook processes one job.
type JobHook func(ctx *Context, job Job) error

// Hooks contains the callbacks provided by a plugin implementation.
type Hooks struct {
	OnJob JobHook
}

// Config describes a plugin instance.
type Config struct {
	PluginName   string
	Version      string
	Capabilities []Capability
	Logger       zerolog.Logger
	Hooks        Hooks
}

// Context provides helpers for hooks to report results safely.
type Context struct {
	ctx          context.Context
	logger       zerolog.Logger
	capabilities map[Capability]struct{}

	mu       sync.Mutex
	result   *Result
	children map[string]*Child
}

// Context returns the context of the run.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Logger returns the logger bound to the plugin context.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}

func (c *Context) require(capability Capability) error {
	if _, ok := c.capabilities[capability]; !ok {
		return CapabilityError{Capability: capability}
	}
	return nil
}

// AddFeature tags the job input.
func (c *Context) AddFeature(v FeatureValue) error {
	if err := c.require(CapabilityEmitFeatures); err != nil {
		return err
	}
	if err := validateFeature(v); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Features = append(c.result.Features, v)
	return nil
}

// AddStream attaches a display stream to the job input.
func (c *Context) AddStream(label string, tags map[string]string, data []byte) error {
	if err := c.require(CapabilityAddStreams); err != nil {
		return err
	}
	stream, err := newStream(label, tags, data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Streams = append(c.result.Streams, stream)
	return nil
}

// AddChild attaches data derived from the input. Children are keyed by
// digest; adding identical data again returns the existing child and keeps
// its first relationship.
func (c *Context) AddChild(data []byte, relationship map[string]string) (*ChildContext, error) {
	if err := c.require(CapabilityAddChildren); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("child data must not be empty")
	}
	digest := Digest(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.children[digest]; ok {
		return &ChildContext{parent: c, child: existing}, nil
	}
	child := &Child{
		SHA256:       digest,
		Size:         len(data),
		Relationship: cloneTags(relationship),
		Data:         append([]byte(nil), data...),
	}
	c.children[digest] = child
	c.result.Children = append(c.result.Children, child)
	return &ChildContext{parent: c, child: child}, nil
}

// ChildContext reports results against a child artifact.
type ChildContext struct {
	parent *Context
	child  *Child
}

// SHA256 returns the child digest.
func (c *ChildContext) SHA256() string {
	return c.child.SHA256
}

// AddFeature tags the child. Duplicate values are ignored.
func (c *ChildContext) AddFeature(v FeatureValue) error {
	if err := c.parent.require(CapabilityEmitFeatures); err != nil {
		return err
	}
	if err := validateFeature(v); err != nil {
		return err
	}
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	for _, existing := range c.child.Features {
		if existing == v {
			return nil
		}
	}
	c.child.Features = append(c.child.Features, v)
	return nil
}

// AddStream attaches a display stream to the child. A stream with the same
// label replaces the earlier one.
func (c *ChildContext) AddStream(label string, tags map[string]string, data []byte) error {
	if err := c.parent.require(CapabilityAddStreams); err != nil {
		return err
	}
	stream, err := newStream(label, tags, data)
	if err != nil {
		return err
	}
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	for i := range c.child.Streams {
		if c.child.Streams[i].Label == label {
			c.child.Streams[i] = stream
			return nil
		}
	}
	c.child.Streams = append(c.child.Streams, stream)
	return nil
}

// Run executes the plugin hook against job and returns the recorded result.
// A hook error is returned alongside a result whose status is StatusError.
func Run(ctx context.Context, cfg Config, job Job) (*Result, error) {
	if cfg.Hooks.OnJob == nil {
		return nil, errors.New("plugin has no job hook")
	}
	if strings.TrimSpace(cfg.PluginName) == "" {
		return nil, errors.New("plugin name is required")
	}

	result := &Result{
		Plugin:  cfg.PluginName,
		Version: cfg.Version,
		Target:  job.Name,
		SHA256:  job.SHA256(),
	}
	pluginCtx := &Context{
		ctx:          ctx,
		logger:       cfg.Logger.With().Str("plugin", cfg.PluginName).Str("sha256", result.SHA256).Logger(),
		capabilities: dedupeCapabilities(cfg.Capabilities),
		result:       result,
		children:     make(map[string]*Child),
	}

	if err := cfg.Hooks.OnJob(pluginCtx, job); err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result, err
	}

	if len(result.Features) == 0 && len(result.Children) == 0 && len(result.Streams) == 0 {
		result.Status = StatusCompletedEmpty
	} else {
		result.Status = StatusCompleted
	}
	return result, nil
}

func dedupeCapabilities(caps []Capability) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if strings.TrimSpace(string(c)) == "" {
			continue
		}
		out[c] = struct{}{}
	}
	return out
}

func validateFeature(v FeatureValue) error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("feature name must not be empty")
	}
	if v.Offset < 0 || v.Size < 0 {
		return fmt.Errorf("feature %s has invalid location %d+%d", v.Name, v.Offset, v.Size)
	}
	return nil
}

func newStream(label string, tags map[string]string, data []byte) (Stream, error) {
	if strings.TrimSpace(label) == "" {
		return Stream{}, errors.New("stream label must not be empty")
	}
	return Stream{
		Label:  label,
		Tags:   cloneTags(tags),
		SHA256: Digest(data),
		Data:   append([]byte(nil), data...),
	}, nil
}

func cloneTags(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
