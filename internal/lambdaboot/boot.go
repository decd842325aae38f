// Package lambdaboot holds the cold-start bootstrap shared by the line-sort
// Lambdas: AWS config, clients, and resolution of the sort configuration
// from environment variables with SSM Parameter Store fallback.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/events"
	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/logging"
)

// Environment variables read at cold start.
const (
	EnvInputBucket       = "SORT_INPUT_BUCKET"
	EnvInputBucketParam  = "SSM_INPUT_BUCKET_PARAM"
	EnvOutputBucket      = "SORT_OUTPUT_BUCKET"
	EnvOutputBucketParam = "SSM_OUTPUT_BUCKET_PARAM"
	EnvSourcePrefix      = "SORT_SOURCE_PREFIX"
	EnvOutputPrefix      = "SORT_OUTPUT_PREFIX"
	EnvEventBusName      = "SORT_EVENT_BUS_NAME"
)

// MetricsNamespace is the CloudWatch namespace for EMF metrics.
const MetricsNamespace = "LineSort"

// AWSClients holds the loaded AWS config and the SSM client used during
// configuration.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config. Fatals on error.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates the S3 client.
func InitS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// InitEvents returns an EventBridge emitter when SORT_EVENT_BUS_NAME is set,
// or nil when completion events are disabled.
func InitEvents(cfg aws.Config) (*events.Emitter, string) {
	bus := os.Getenv(EnvEventBusName)
	if bus == "" {
		log.Debug().Str("envVar", EnvEventBusName).Msg("Event bus not set; completion events disabled")
		return nil, ""
	}
	return events.NewEmitter(eventbridge.NewFromConfig(cfg), bus), bus
}

// ParamAPI is the subset of *ssm.Client used for configuration.
type ParamAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveSetting returns the value of envVar if set. Otherwise, if
// paramEnvVar names an SSM parameter path, the parameter is read. Otherwise
// defaultVal is returned. The returned source is "env", "ssm:<path>" or
// "default".
func ResolveSetting(ctx context.Context, client ParamAPI, envVar, paramEnvVar, defaultVal string) (string, string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, "env", nil
	}
	if paramEnvVar != "" && client != nil {
		if path := os.Getenv(paramEnvVar); path != "" {
			start := time.Now()
			result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
				Name:           aws.String(path),
				WithDecryption: aws.Bool(false),
			})
			if err != nil {
				return "", "", fmt.Errorf("read SSM parameter %s: %w", path, err)
			}
			if result.Parameter == nil || result.Parameter.Value == nil {
				return "", "", fmt.Errorf("SSM parameter %s has no value", path)
			}
			value := aws.ToString(result.Parameter.Value)
			log.Debug().Str("param", path).Dur("elapsed", time.Since(start)).Msg("Setting loaded from SSM")
			return value, "ssm:" + path, nil
		}
	}
	return defaultVal, "default", nil
}

// LoadSortConfig builds the Processor configuration from the environment,
// falling back to SSM for bucket names and to the documented defaults.
// The returned map records where each setting came from.
func LoadSortConfig(ctx context.Context, client ParamAPI) (linesort.Config, map[string]string, error) {
	cfg := linesort.DefaultConfig()
	sources := make(map[string]string)

	settings := []struct {
		name       string
		envVar     string
		paramVar   string
		target     *string
		defaultVal string
	}{
		{"inputBucket", EnvInputBucket, EnvInputBucketParam, &cfg.InputBucket, cfg.InputBucket},
		{"outputBucket", EnvOutputBucket, EnvOutputBucketParam, &cfg.OutputBucket, cfg.OutputBucket},
		{"sourcePrefix", EnvSourcePrefix, "", &cfg.SourcePrefix, cfg.SourcePrefix},
		{"outputPrefix", EnvOutputPrefix, "", &cfg.OutputPrefix, cfg.OutputPrefix},
	}
	for _, s := range settings {
		value, source, err := ResolveSetting(ctx, client, s.envVar, s.paramVar, s.defaultVal)
		if err != nil {
			return linesort.Config{}, nil, fmt.Errorf("%s: %w", s.name, err)
		}
		*s.target = value
		sources[s.name] = source
	}

	if err := cfg.Validate(); err != nil {
		return linesort.Config{}, nil, err
	}
	return cfg, sources, nil
}

// MustLoadSortConfig is LoadSortConfig for init(); it fatals on error.
func MustLoadSortConfig(client ParamAPI) (linesort.Config, map[string]string) {
	cfg, sources, err := LoadSortConfig(context.Background(), client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sort configuration")
	}
	return cfg, sources
}

// StartupLog starts a startup logger pre-filled with the sort configuration.
func StartupLog(name string, initStart time.Time, cfg linesort.Config, sources map[string]string) *logging.StartupLogger {
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		S3Bucket("input", cfg.InputBucket).
		S3Bucket("output", cfg.OutputBucket).
		Config("sourcePrefix", cfg.SourcePrefix).
		Config("outputPrefix", cfg.OutputPrefix).
		Config("outputExtension", cfg.OutputExtension)
	for setting, source := range sources {
		if path, ok := strings.CutPrefix(source, "ssm:"); ok {
			sl.SSMParam(setting, path)
		}
	}
	return sl
}
