// Package linesort implements the sort-and-relocate operation behind the
// line-sort Lambda.
//
// An invocation names a source object under the "unsorted/" prefix of the
// input bucket, either through an S3 event notification or a direct
// {"key": "..."} payload. The object's lines are sorted ordinally and the
// result is written to the output bucket as
// "sorted-unsorted/sorted-<name>.srt". Every outcome, including failures,
// is reported as a {statusCode, body} Response; nothing is retried.
package linesort

import "fmt"

// Default locations and naming constants. These match the buckets and
// prefixes the upload front end was built against.
const (
	DefaultInputBucket     = "sort-in-bucket"
	DefaultOutputBucket    = "sort-out-bucket"
	DefaultSourcePrefix    = "unsorted/"
	DefaultOutputPrefix    = "sorted-unsorted/sorted-"
	DefaultInputExtension  = ".txt"
	DefaultOutputExtension = ".srt"
)

// Config holds the fixed locations the Processor reads from and writes to.
type Config struct {
	InputBucket  string
	OutputBucket string

	// SourcePrefix is the prefix every source key must start with.
	SourcePrefix string
	// OutputPrefix is prepended to the derived file name.
	OutputPrefix string

	// InputExtension is rewritten to OutputExtension when the file name ends
	// with it; otherwise OutputExtension is appended.
	InputExtension  string
	OutputExtension string
}

// DefaultConfig returns the configuration the Lambda runs with when no
// overrides are set.
func DefaultConfig() Config {
	return Config{
		InputBucket:     DefaultInputBucket,
		OutputBucket:    DefaultOutputBucket,
		SourcePrefix:    DefaultSourcePrefix,
		OutputPrefix:    DefaultOutputPrefix,
		InputExtension:  DefaultInputExtension,
		OutputExtension: DefaultOutputExtension,
	}
}

// Validate reports the first empty field.
func (c Config) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"input bucket", c.InputBucket},
		{"output bucket", c.OutputBucket},
		{"source prefix", c.SourcePrefix},
		{"output prefix", c.OutputPrefix},
		{"input extension", c.InputExtension},
		{"output extension", c.OutputExtension},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("config: %s must not be empty", f.name)
		}
	}
	return nil
}
