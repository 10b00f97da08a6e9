// Package rpc serves the decoder over gRPC. The service is described by hand
// on top of protobuf well-known types: Decode and Scan take a BytesValue, and
// Scan and Watch answer with Structs.
package rpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/RowanDark/scrdec/internal/cipher"
	"github.com/RowanDark/scrdec/internal/findings"
	"github.com/RowanDark/scrdec/internal/logging"
	"github.com/RowanDark/scrdec/internal/observability/metrics"
	"github.com/RowanDark/scrdec/internal/observability/tracing"
	"github.com/RowanDark/scrdec/internal/plugin"
	"github.com/RowanDark/scrdec/internal/screnc"
	"github.com/RowanDark/scrdec/internal/scriptdecoder"
	"github.com/RowanDark/scrdec/internal/source"
	"github.com/RowanDark/scrdec/internal/store"
)

const (
	// NameHeader optionally names the scanned input in findings.
	NameHeader = "x-scrdec-name"
	// PeelHeader asks Scan to strip base64, hex or URL layers first.
	PeelHeader = "x-scrdec-peel"

	metricsSource = "rpc"
)

var errNoEnvelope = errors.New("no encoded script found")

// Options configures a Server. Zero values disable the optional parts.
type Options struct {
	AuthToken string
	Logger    zerolog.Logger
	Audit     *logging.AuditLogger
	Bus       *findings.Bus
	Store     *store.Store
	Decoder   scriptdecoder.Options
}

// Server implements ScriptDecoderServer.
type Server struct {
	authToken string
	logger    zerolog.Logger
	audit     *logging.AuditLogger
	bus       *findings.Bus
	store     *store.Store
	decoder   scriptdecoder.Options
}

var _ ScriptDecoderServer = (*Server)(nil)

// NewServer creates a decoder service.
func NewServer(opts Options) *Server {
	return &Server{
		authToken: strings.TrimSpace(opts.AuthToken),
		logger:    opts.Logger,
		audit:     opts.Audit,
		bus:       opts.Bus,
		store:     opts.Store,
		decoder:   opts.Decoder,
	}
}

// NewGRPCServer returns a gRPC server with tracing, metrics and
// authentication interceptors and the service registered.
func (s *Server) NewGRPCServer(extra ...grpc.ServerOption) *grpc.Server {
	opts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(tracing.UnaryServerInterceptor(), s.observeUnary, s.authUnary),
		grpc.ChainStreamInterceptor(s.authStream),
	}, extra...)
	g := grpc.NewServer(opts...)
	RegisterScriptDecoderServer(g, s)
	return g
}

// Decode returns the decoded text of every envelope, joined by a newline.
func (s *Server) Decode(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	data := in.GetValue()
	if len(data) == 0 {
		return nil, s.reject("Decode", source.ErrNoInput)
	}
	envs := screnc.FindAll(data)
	metrics.RecordEnvelopes(metricsSource, len(envs))
	if len(envs) == 0 {
		return nil, status.Error(codes.NotFound, errNoEnvelope.Error())
	}
	op, ok := cipher.GetOperation("screnc_decode")
	if !ok {
		return nil, status.Error(codes.Internal, "screnc_decode is not registered")
	}
	out, err := op.Execute(ctx, data, nil)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(out), nil
}

// Scan runs the decoder plugin against the request and reports what it found.
func (s *Server) Scan(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	data := in.GetValue()
	if len(data) == 0 {
		return nil, s.reject("Scan", source.ErrNoInput)
	}
	name := firstMetadata(ctx, NameHeader)
	if name == "" {
		name = "rpc"
	}

	var layers []string
	if peel := strings.ToLower(firstMetadata(ctx, PeelHeader)); peel == "1" || peel == "true" {
		peeled, pipeline, err := cipher.Peel(ctx, data, cipher.DefaultPeelDepth)
		if err != nil {
			return nil, toStatus(err)
		}
		data, layers = peeled, pipeline.Names()
	}

	start := time.Now()
	res, err := scriptdecoder.Scan(ctx, name, data, s.decoder, s.logger)
	metrics.ObserveScanDuration(ctx, metricsSource, time.Since(start))
	if err != nil {
		return nil, toStatus(err)
	}
	found, err := findings.FromResult(res)
	if err != nil {
		return nil, toStatus(err)
	}
	s.record(res)

	if s.store != nil {
		if err := s.persist(ctx, res, data, found); err != nil {
			return nil, toStatus(err)
		}
	}
	if s.bus != nil {
		for _, f := range found {
			s.bus.Emit(f)
		}
	}
	return scanResponse(res, found, layers)
}

// Watch streams every finding emitted by Scan until the client disconnects.
func (s *Server) Watch(_ *emptypb.Empty, stream ScriptDecoder_WatchServer) error {
	if s.bus == nil {
		return status.Error(codes.Unavailable, "findings stream disabled")
	}
	ctx := stream.Context()
	ch := s.bus.Subscribe(ctx)
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := findings.ToStruct(f)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Server) persist(ctx context.Context, res *plugin.Result, data []byte, found []findings.Finding) error {
	digest, err := s.store.PutResult(ctx, res, data)
	if err != nil {
		return err
	}
	for _, f := range found {
		if err := s.store.SaveFinding(ctx, f); err != nil {
			return err
		}
	}
	s.audit.Record(logging.EventArtifactStored, res.Target, logging.DecisionInfo, map[string]any{
		"sha256":   digest,
		"children": len(res.Children),
	})
	return nil
}

func (s *Server) record(res *plugin.Result) {
	envelopes := 0
	for _, f := range res.Features {
		if f.Name == "tag" && f.Value == findings.TypeEncodedScript {
			envelopes++
			s.audit.Record(logging.EventEnvelopeFound, res.Target, logging.DecisionInfo, map[string]any{
				"offset": f.Offset,
				"size":   f.Size,
			})
		}
	}
	metrics.RecordEnvelopes(metricsSource, envelopes)
	for _, child := range res.Children {
		language := child.Relationship["language"]
		metrics.RecordDecoded(language, child.Size)
		s.audit.Record(logging.EventScriptDecoded, res.Target, logging.DecisionInfo, map[string]any{
			"sha256":   child.SHA256,
			"language": language,
			"size":     child.Size,
		})
	}
}

func (s *Server) reject(method string, err error) error {
	metrics.RecordRejectedInput("empty_request")
	s.audit.Record(logging.EventInputRejected, method, logging.DecisionDeny, map[string]any{"reason": err.Error()})
	return status.Error(codes.InvalidArgument, err.Error())
}

func scanResponse(res *plugin.Result, found []findings.Finding, layers []string) (*structpb.Struct, error) {
	envelopes := 0
	items := make([]*structpb.Value, 0, len(found))
	for _, f := range found {
		if f.Type == findings.TypeEncodedScript {
			envelopes++
		}
		st, err := findings.ToStruct(f)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		items = append(items, structpb.NewStructValue(st))
	}

	scripts := make([]*structpb.Value, 0, len(res.Children))
	for _, child := range res.Children {
		display := ""
		for _, s := range child.Streams {
			if lang := s.Tags["language"]; lang != "" {
				display = lang
			}
		}
		scripts = append(scripts, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"sha256":           structpb.NewStringValue(child.SHA256),
			"offset":           structpb.NewStringValue(child.Relationship["offset"]),
			"language":         structpb.NewStringValue(child.Relationship["language"]),
			"display_language": structpb.NewStringValue(display),
			"text":             structpb.NewStringValue(strings.ToValidUTF8(string(child.Data), "�")),
		}}))
	}

	layerValues := make([]*structpb.Value, 0, len(layers))
	for _, l := range layers {
		layerValues = append(layerValues, structpb.NewStringValue(l))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"plugin":    structpb.NewStringValue(res.Plugin),
		"version":   structpb.NewStringValue(res.Version),
		"target":    structpb.NewStringValue(res.Target),
		"sha256":    structpb.NewStringValue(res.SHA256),
		"status":    structpb.NewStringValue(string(res.Status)),
		"envelopes": structpb.NewNumberValue(float64(envelopes)),
		"layers":    structpb.NewListValue(&structpb.ListValue{Values: layerValues}),
		"findings":  structpb.NewListValue(&structpb.ListValue{Values: items}),
		"scripts":   structpb.NewListValue(&structpb.ListValue{Values: scripts}),
	}}, nil
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	var capErr plugin.CapabilityError
	switch {
	case errors.Is(err, source.ErrNoInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &capErr):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
