// Package main provides the API Gateway front door for line sorting.
//
// Routes:
//   - POST /sort: body is a direct or notification request; the response
//     status mirrors the sort response's statusCode
//   - GET /healthz: liveness
//
// Configuration is shared with sort-lambda (SORT_* environment variables
// with SSM fallback for bucket names).
package main

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/fpang/line-sort/internal/httpapi"
	"github.com/fpang/line-sort/internal/lambdaboot"
	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/logging"
	"github.com/fpang/line-sort/internal/s3util"
)

func main() {
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
	processor := linesort.NewProcessor(cfg, store, opts...)

	sl := lambdaboot.StartupLog("sort-api-lambda", initStart, cfg, sources).
		Feature("completionEvents", emitter != nil)
	if bus != "" {
		sl.EventBus("completion", bus)
	}
	sl.Log()

	adapter := httpadapter.NewV2(httpapi.NewHandler(processor))
	lambda.Start(adapter.ProxyWithContext)
}
