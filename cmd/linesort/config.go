package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/logging"
	"github.com/fpang/line-sort/internal/miniostore"
)

// Credentials for --endpoint when not given in the config file.
const (
	envS3AccessKey = "SORT_S3_ACCESS_KEY"
	envS3SecretKey = "SORT_S3_SECRET_KEY"
)

// fileConfig is the optional TOML file passed with --config. Empty fields
// leave the environment-derived value in place.
//
//	input_bucket  = "sort-in-bucket"
//	output_bucket = "sort-out-bucket"
//	source_prefix = "unsorted/"
//	output_prefix = "sorted-unsorted/sorted-"
//
//	[endpoint]
//	address = "localhost:9000"
//	region  = "us-east-1"
//	secure  = false
type fileConfig struct {
	InputBucket  string `toml:"input_bucket"`
	OutputBucket string `toml:"output_bucket"`
	SourcePrefix string `toml:"source_prefix"`
	OutputPrefix string `toml:"output_prefix"`

	Endpoint endpointConfig `toml:"endpoint"`
}

type endpointConfig struct {
	Address   string `toml:"address"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Secure    bool   `toml:"secure"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fc, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return fc, nil
}

// apply overlays the non-empty file settings onto cfg.
func (fc fileConfig) apply(cfg linesort.Config) linesort.Config {
	for _, s := range []struct {
		value  string
		target *string
	}{
		{fc.InputBucket, &cfg.InputBucket},
		{fc.OutputBucket, &cfg.OutputBucket},
		{fc.SourcePrefix, &cfg.SourcePrefix},
		{fc.OutputPrefix, &cfg.OutputPrefix},
	} {
		if s.value != "" {
			*s.target = s.value
		}
	}
	return cfg
}

// minioOptions merges the endpoint flag with the file section and the
// credential environment variables.
func (fc fileConfig) minioOptions(endpointFlag string) miniostore.Options {
	opts := miniostore.Options{
		Endpoint:  fc.Endpoint.Address,
		AccessKey: fc.Endpoint.AccessKey,
		SecretKey: fc.Endpoint.SecretKey,
		Region:    fc.Endpoint.Region,
		Secure:    fc.Endpoint.Secure,
	}
	if endpointFlag != "" {
		opts.Endpoint = endpointFlag
	}
	if opts.AccessKey == "" {
		opts.AccessKey = os.Getenv(envS3AccessKey)
	}
	if opts.SecretKey == "" {
		opts.SecretKey = os.Getenv(envS3SecretKey)
	}
	if opts.Region == "" {
		opts.Region = logging.EnvOrDefault("AWS_REGION", "us-east-1")
	}
	return opts
}

// loadEnvFiles loads .env and then .env.local from the working directory.
// Variables already set in the process environment win over .env; .env.local
// overrides both. Missing files are skipped; Lambda never reads them.
func loadEnvFiles() error {
	if logging.InLambda() {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := godotenv.Overload(".env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	return nil
}
