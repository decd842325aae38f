// Package main is the line-sort command-line tool.
//
// It runs the sort operation against a local directory, an S3-compatible
// endpoint or S3 itself, serves the HTTP front door, and submits files to a
// deployed sort function.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fpang/line-sort/internal/logging"
)

// globalFlags select configuration and where the operation reads and writes.
type globalFlags struct {
	configPath string
	localRoot  string
	endpoint   string
	inBucket   string
	outBucket  string

	file fileConfig
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:   "linesort",
		Short: "Sort the lines of text files stored in buckets",
		Long: `linesort reads a text object from the input bucket, sorts its lines, and
writes the result to the output bucket under the sorted prefix.

Settings are resolved in this order, later wins: defaults, SORT_* environment
variables (with .env and .env.local loaded first, SSM fallback for bucket
names when talking to AWS), the --config TOML file, then flags.

Storage is chosen by flag:
  --local-root DIR   each bucket is a directory under DIR
  --endpoint HOST    S3-compatible endpoint such as MinIO (SORT_S3_ACCESS_KEY,
                     SORT_S3_SECRET_KEY)
  (neither)          AWS S3 with the default credential chain

Examples:
  linesort run --key unsorted/names.txt --local-root ./data
  linesort run --key unsorted/names.txt --endpoint localhost:9000
  linesort invoke --payload event.json
  echo '{"key": "unsorted/names.txt"}' | linesort invoke --payload -
  linesort serve --addr :8080 --local-root ./data
  linesort submit --file names.txt --function file-sorting-function`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFiles(); err != nil {
				return err
			}
			logging.Init()
			fc, err := loadFileConfig(gf.configPath)
			if err != nil {
				return err
			}
			gf.file = fc
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&gf.configPath, "config", "", "TOML settings file")
	pf.StringVar(&gf.localRoot, "local-root", "", "Use a directory-backed store rooted here")
	pf.StringVar(&gf.endpoint, "endpoint", "", "Use an S3-compatible endpoint (host:port)")
	pf.StringVar(&gf.inBucket, "in-bucket", "", "Override the input bucket")
	pf.StringVar(&gf.outBucket, "out-bucket", "", "Override the output bucket")
	root.MarkFlagsMutuallyExclusive("local-root", "endpoint")

	root.AddCommand(
		newRunCmd(gf),
		newInvokeCmd(gf),
		newServeCmd(gf),
		newSubmitCmd(gf),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
