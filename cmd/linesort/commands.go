package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/line-sort/internal/httpapi"
	"github.com/fpang/line-sort/internal/lambdaboot"
	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/localstore"
	"github.com/fpang/line-sort/internal/miniostore"
	"github.com/fpang/line-sort/internal/s3util"
	"github.com/fpang/line-sort/internal/submit"
)

// errNotOK is returned when the sort response carries a non-200 status, so
// the process exits non-zero after the response has been printed.
var errNotOK = errors.New("sort did not succeed")

func newRunCmd(gf *globalFlags) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sort one object by key",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := gf.processor(cmd.Context())
			if err != nil {
				return err
			}
			payload, err := json.Marshal(map[string]string{"key": key})
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), p.Handle(cmd.Context(), payload))
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Source key, e.g. unsorted/names.txt")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newInvokeCmd(gf *globalFlags) *cobra.Command {
	var payloadPath string
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Handle a raw invocation payload (S3 notification or {\"key\": ...})",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), payloadPath)
			if err != nil {
				return err
			}
			p, err := gf.processor(cmd.Context())
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), p.Handle(cmd.Context(), payload))
		},
	}
	cmd.Flags().StringVar(&payloadPath, "payload", "-", "Payload file, or - for stdin")
	return cmd
}

func newServeCmd(gf *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /sort, GET /healthz and GET /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := gf.processor(cmd.Context())
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewHandler(p, httpapi.WithPrometheus(reg)),
				ReadHeaderTimeout: 10 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("Listening")
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

func newSubmitCmd(gf *globalFlags) *cobra.Command {
	var (
		file     string
		function string
		noURL    bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload a .txt or .csv file, invoke the deployed function and print the sorted result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gf.localRoot != "" || gf.endpoint != "" {
				return errors.New("submit talks to a deployed function; --local-root and --endpoint are not supported")
			}
			awsClients := lambdaboot.InitAWS()
			cfg, _, err := lambdaboot.LoadSortConfig(cmd.Context(), awsClients.SSM)
			if err != nil {
				return err
			}
			cfg = gf.apply(cfg)

			s3Client := lambdaboot.InitS3(awsClients.Config)
			var presigner s3util.PresignAPI
			if !noURL {
				presigner = s3.NewPresignClient(s3Client)
			}
			client := submit.NewClient(cfg, function, s3Client, presigner, lambda.NewFromConfig(awsClients.Config))

			outcome, err := client.Submit(cmd.Context(), file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, outcome.Sorted)
			if outcome.DownloadURL != "" {
				fmt.Fprintf(os.Stderr, "\nDownload (valid %s): %s\n", submit.DefaultURLExpiry, outcome.DownloadURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local .txt or .csv file to sort")
	cmd.Flags().StringVar(&function, "function", "file-sorting-function", "Name or ARN of the sort function")
	cmd.Flags().BoolVar(&noURL, "no-url", false, "Skip generating a presigned download URL")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// apply layers the config file and the bucket flags over cfg.
func (gf *globalFlags) apply(cfg linesort.Config) linesort.Config {
	cfg = gf.file.apply(cfg)
	if gf.inBucket != "" {
		cfg.InputBucket = gf.inBucket
	}
	if gf.outBucket != "" {
		cfg.OutputBucket = gf.outBucket
	}
	return cfg
}

// processor builds a Processor over the selected store: a local directory,
// an S3-compatible endpoint, or S3 with SSM-backed configuration.
func (gf *globalFlags) processor(ctx context.Context) (*linesort.Processor, error) {
	var (
		store  linesort.Store
		params lambdaboot.ParamAPI
	)
	switch {
	case gf.localRoot != "":
		ls, err := localstore.New(gf.localRoot)
		if err != nil {
			return nil, err
		}
		store = ls
	case gf.endpoint != "" || gf.file.Endpoint.Address != "":
		ms, err := miniostore.New(gf.file.minioOptions(gf.endpoint))
		if err != nil {
			return nil, err
		}
		store = ms
	default:
		awsClients := lambdaboot.InitAWS()
		store = s3util.NewStore(lambdaboot.InitS3(awsClients.Config))
		params = awsClients.SSM
	}

	cfg, _, err := lambdaboot.LoadSortConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	cfg = gf.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().
		Str("inputBucket", cfg.InputBucket).
		Str("outputBucket", cfg.OutputBucket).
		Msg("Sort configuration resolved")
	return linesort.NewProcessor(cfg, store), nil
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func printResponse(w io.Writer, resp linesort.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errNotOK
	}
	return nil
}
