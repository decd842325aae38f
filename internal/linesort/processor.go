package linesort

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/metrics"
)

// Store is the blob store the Processor reads sources from and writes
// results to. Get returns an error wrapping ErrObjectNotFound when the
// object does not exist. Put overwrites any existing object.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
}

// Notifier is told about every successful sort after the result is written.
type Notifier interface {
	Notify(ctx context.Context, result Result) error
}

// Result describes a completed sort.
type Result struct {
	SourceKey      string `json:"sourceKey"`
	InputBucket    string `json:"inputBucket"`
	OutputBucket   string `json:"outputBucket"`
	DestinationKey string `json:"destinationKey"`
	LineCount      int    `json:"lineCount"`
	Bytes          int    `json:"bytes"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithNotifier sends a notification after each successful write. Notify
// failures are logged and do not change the response.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithMetrics emits one EMF document per Handle call under namespace.
// A nil writer means stdout.
func WithMetrics(namespace string, w io.Writer) Option {
	return func(p *Processor) {
		p.metricsNamespace = namespace
		p.metricsOut = w
	}
}

// Processor runs the sort-and-relocate operation. It holds no per-invocation
// state and may be shared across invocations.
type Processor struct {
	cfg      Config
	store    Store
	notifier Notifier

	metricsNamespace string
	metricsOut       io.Writer
}

// NewProcessor returns a Processor reading and writing through store.
func NewProcessor(cfg Config, store Store, opts ...Option) *Processor {
	p := &Processor{cfg: cfg, store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the locations the Processor was built with.
func (p *Processor) Config() Config { return p.cfg }

// wrongFolderFormat is the client-facing message for a key outside the
// source prefix. Callers match on its exact text, capitalization and
// trailing period included.
const wrongFolderFormat = "File is not in the expected '%s' folder."

// Process validates sourceKey, sorts the object's lines and writes the
// result to the output bucket. Failures are returned as *Error.
func (p *Processor) Process(ctx context.Context, sourceKey string) (Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("sourceKey", sourceKey).Logger()

	if !strings.HasPrefix(sourceKey, p.cfg.SourcePrefix) {
		return Result{}, newError(KindInvalidLocation, sourceKey,
			fmt.Errorf(wrongFolderFormat, p.cfg.SourcePrefix))
	}

	data, err := p.store.Get(ctx, p.cfg.InputBucket, sourceKey)
	if err != nil {
		return Result{}, newError(KindFetch, sourceKey, fmt.Errorf("fetch from %s: %w", p.cfg.InputBucket, err))
	}
	logger.Debug().Int("size", len(data)).Msg("Source object fetched")

	if !utf8.Valid(data) {
		return Result{}, newError(KindDecode, sourceKey, errors.New("content is not valid UTF-8 text"))
	}
	sorted := SortLines(string(data))

	destKey := DestinationKey(p.cfg, sourceKey)
	if err := p.store.Put(ctx, p.cfg.OutputBucket, destKey, []byte(sorted)); err != nil {
		return Result{}, newError(KindWrite, sourceKey, fmt.Errorf("write to %s/%s: %w", p.cfg.OutputBucket, destKey, err))
	}

	return Result{
		SourceKey:      sourceKey,
		InputBucket:    p.cfg.InputBucket,
		OutputBucket:   p.cfg.OutputBucket,
		DestinationKey: destKey,
		LineCount:      strings.Count(sorted, "\n") + 1,
		Bytes:          len(sorted),
	}, nil
}

// Handle normalizes a raw invocation payload, runs Process and shapes the
// outcome into a Response. It never returns an error; every failure is a
// 400 or 500 Response.
func (p *Processor) Handle(ctx context.Context, payload []byte) Response {
	start := time.Now()
	logger := log.With().Str("requestId", requestID(ctx)).Logger()
	ctx = logger.WithContext(ctx)

	req, err := ParseRequest(payload)
	if err != nil {
		logger.Warn().Err(err).Str("kind", KindOf(err).String()).Msg("Rejected invocation payload")
		p.emitMetrics(logger, "", Result{}, err, time.Since(start))
		return ErrorResponse(err)
	}

	logger = logger.With().Str("sourceKey", req.SourceKey).Str("shape", req.Kind.String()).Logger()
	if req.Bucket != "" && req.Bucket != p.cfg.InputBucket {
		logger.Warn().Str("eventBucket", req.Bucket).Str("inputBucket", p.cfg.InputBucket).
			Msg("Notification bucket differs from configured input bucket")
	}
	logger.Info().Msg("Processing file")

	result, err := p.Process(ctx, req.SourceKey)
	if err != nil {
		logger.Error().Err(err).Str("kind", KindOf(err).String()).Msg("Failed to process file")
		p.emitMetrics(logger, req.SourceKey, Result{}, err, time.Since(start))
		return ErrorResponse(err)
	}

	if p.notifier != nil {
		if nerr := p.notifier.Notify(ctx, result); nerr != nil {
			logger.Warn().Err(nerr).Msg("Failed to send completion notification")
		}
	}

	logger.Info().
		Str("outputBucket", result.OutputBucket).
		Str("destinationKey", result.DestinationKey).
		Int("lines", result.LineCount).
		Dur("duration", time.Since(start)).
		Msg("File sorted and uploaded")
	p.emitMetrics(logger, req.SourceKey, result, nil, time.Since(start))
	return SuccessResponse(result.OutputBucket, result.DestinationKey)
}

func (p *Processor) emitMetrics(logger zerolog.Logger, sourceKey string, result Result, err error, elapsed time.Duration) {
	if p.metricsNamespace == "" {
		return
	}
	rec := metrics.New(p.metricsNamespace)
	if p.metricsOut != nil {
		rec.Output(p.metricsOut)
	}
	rec.Count("InvocationCount").
		Metric("LatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
	if sourceKey != "" {
		rec.Property("sourceKey", sourceKey)
	}
	if err != nil {
		rec.Dimension("Outcome", "failure").Dimension("ErrorKind", KindOf(err).String())
	} else {
		rec.Dimension("Outcome", "success").
			Metric("LinesSorted", float64(result.LineCount), metrics.UnitCount).
			Metric("BytesWritten", float64(result.Bytes), metrics.UnitBytes)
	}
	rec.Flush()
	logger.Debug().Msg("Invocation metrics flushed")
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
