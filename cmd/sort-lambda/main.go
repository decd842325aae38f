// Package main provides the Lambda entry point for line sorting.
//
// The function is triggered by S3 ObjectCreated notifications on the input
// bucket, or invoked directly with {"key": "unsorted/<name>"}. It reads the
// text object, sorts its lines, and writes the result to the output bucket
// under the sorted prefix.
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/lambdaboot"
	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/logging"
	"github.com/fpang/line-sort/internal/s3util"
)

var (
	processor *linesort.Processor
	coldStart = true
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	cfg, sources := lambdaboot.MustLoadSortConfig(awsClients.SSM)
	store := s3util.NewStore(lambdaboot.InitS3(awsClients.Config))

	opts := []linesort.Option{linesort.WithMetrics(lambdaboot.MetricsNamespace, nil)}
	emitter, bus := lambdaboot.InitEvents(awsClients.Config)
	if emitter != nil {
		opts = append(opts, linesort.WithNotifier(emitter))
	}
	processor = linesort.NewProcessor(cfg, store, opts...)

	sl := lambdaboot.StartupLog("sort-lambda", initStart, cfg, sources).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("completionEvents", emitter != nil)
	if bus != "" {
		sl.EventBus("completion", bus)
	}
	sl.Log()
}

// handler accepts either an S3 notification or a direct {"key": ...}
// request. Failures are reported through the response status code, so the
// returned error is always nil and the runtime never retries.
func handler(ctx context.Context, payload json.RawMessage) (linesort.Response, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "sort-lambda").Msg("Cold start: first invocation")
	}
	return processor.Handle(ctx, payload), nil
}

func main() {
	lambda.Start(handler)
}
