package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/async"
	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/entity"
	"github.com/joseph-ayodele/gauge-tracker/internal/ingest"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
	"github.com/joseph-ayodele/gauge-tracker/internal/repository"
)

const ReadingsServiceName = "gauge.v1.ReadingsService"

// ReadingsServer is the gRPC surface over stored readings and the photo pipeline.
// Requests and responses are google.protobuf.Struct messages.
type ReadingsServer interface {
	ListRecent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExtractPhoto(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type ReadingsService struct {
	repo   repository.ReadingRepository
	proc   pipeline.PhotoProcessor
	queue  async.Queue // nil disables IngestDirectory
	logger *slog.Logger
}

var _ ReadingsServer = (*ReadingsService)(nil)

func NewReadingsService(repo repository.ReadingRepository, proc pipeline.PhotoProcessor, queue async.Queue, logger *slog.Logger) *ReadingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingsService{repo: repo, proc: proc, queue: queue, logger: logger}
}

// RegisterReadingsServer attaches srv to s.
func RegisterReadingsServer(s grpc.ServiceRegistrar, srv ReadingsServer) {
	s.RegisterService(&readingsServiceDesc, srv)
}

// ListRecent: {limit?: number} -> {readings: [...]}
func (s *ReadingsService) ListRecent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n := numberField(req, "limit")
	if !(n >= 0 && n <= maxListLimit) {
		return nil, common.InvalidArgumentErrorf("limit must be in [0, %d]", maxListLimit)
	}
	limit := int(n)
	recs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("grpc.list_recent.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, readingMap(rec))
	}
	return newStruct(map[string]any{"readings": items})
}

// ExtractPhoto: {path: string, save?: bool} -> reading
func (s *ReadingsService) ExtractPhoto(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(stringField(req, "path"))
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return nil, common.InvalidArgumentErrorf("unsupported file type %q", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NotFoundError("photo not found")
		}
		return nil, common.InternalErrorf("stat photo: %v", err)
	}

	s.logger.Info("grpc.extract.start", "path", path)
	out := s.proc.ProcessPhoto(ctx, path)
	rec := out.Record()
	if boolField(req, "save") && out.Err == nil {
		if err := s.repo.Insert(ctx, rec); err != nil {
			s.logger.Error("grpc.extract.save_failed", "path", path, "error", err)
			return nil, common.ToStatus(err)
		}
	}
	return newStruct(readingMap(rec))
}

// IngestDirectory: {root_path: string, skip_hidden?: bool, force?: bool} -> counts.
// Photos are queued; results land in the repository as workers finish them.
func (s *ReadingsService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unimplemented, "ingest queue is not configured")
	}
	root := strings.TrimSpace(stringField(req, "root_path"))
	if root == "" {
		return nil, common.InvalidArgumentError("root_path is required")
	}
	skipHidden := true
	if v, ok := req.GetFields()["skip_hidden"]; ok {
		skipHidden = v.GetBoolValue()
	}

	paths, stats, err := ingest.ScanDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("scan directory: %v", err)
	}

	traceID := uuid.NewString()
	queued := 0
	for _, p := range paths {
		job := async.Job{Path: p, Force: boolField(req, "force"), SubmittedAt: time.Now(), TraceID: traceID}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Warn("grpc.ingest.enqueue_failed", "path", p, "error", err)
			break
		}
		queued++
	}
	s.logger.Info("grpc.ingest.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "queued", queued, "trace_id", traceID)

	return newStruct(map[string]any{
		"scanned":  stats.Scanned,
		"matched":  stats.Matched,
		"queued":   queued,
		"trace_id": traceID,
	})
}

// readingMap renders a record with null for unset fields.
func readingMap(r *entity.Reading) map[string]any {
	m := map[string]any{
		"id":            r.ID.String(),
		"source":        r.Source,
		"content_hash":  r.ContentHash,
		"date":          nil,
		"temperature_c": floatOrNil(r.Temperature),
		"humidity_pct":  floatOrNil(r.Humidity),
		"lat":           floatOrNil(r.Lat),
		"lng":           floatOrNil(r.Lng),
		"status":        string(r.Status),
		"needs_review":  r.NeedsReview,
		"notes":         r.Notes,
		"llm_reason":    r.LLMReason,
		"error":         r.Error,
	}
	if r.Date != nil {
		m["date"] = r.Date.Format(time.RFC3339)
	}
	if !r.CreatedAt.IsZero() {
		m["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return st, nil
}

func stringField(st *structpb.Struct, key string) string {
	return st.GetFields()[key].GetStringValue()
}

func numberField(st *structpb.Struct, key string) float64 {
	return st.GetFields()[key].GetNumberValue()
}

func boolField(st *structpb.Struct, key string) bool {
	return st.GetFields()[key].GetBoolValue()
}

func unaryHandler(call func(ReadingsServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReadingsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ReadingsServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReadingsServer), ctx, req.(*structpb.Struct))
		})
	}
}

var readingsServiceDesc = grpc.ServiceDesc{
	ServiceName: ReadingsServiceName,
	HandlerType: (*ReadingsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRecent", Handler: unaryHandler(ReadingsServer.ListRecent, "ListRecent")},
		{MethodName: "ExtractPhoto", Handler: unaryHandler(ReadingsServer.ExtractPhoto, "ExtractPhoto")},
		{MethodName: "IngestDirectory", Handler: unaryHandler(ReadingsServer.IngestDirectory, "IngestDirectory")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gauge/v1/readings.proto",
}
