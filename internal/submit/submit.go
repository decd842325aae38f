// Package submit is the client side of line-sort: it uploads a local file
// under the source prefix, invokes the sort function with an S3
// notification payload, and fetches the sorted result.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
	"github.com/fpang/line-sort/internal/s3util"
)

// DefaultURLExpiry is how long the download link stays valid.
const DefaultURLExpiry = 60 * time.Second

// contentTypes lists the accepted upload extensions.
var contentTypes = map[string]string{
	".txt": "text/plain",
	".csv": "text/csv",
}

// ErrUnsupportedFile is returned for files other than .txt and .csv.
var ErrUnsupportedFile = errors.New("only .txt and .csv files are accepted")

// LambdaAPI is the subset of *lambda.Client used by Client.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Client submits files to a deployed sort function.
type Client struct {
	cfg       linesort.Config
	function  string
	objects   s3util.ObjectAPI
	presigner s3util.PresignAPI
	invoker   LambdaAPI
	urlExpiry time.Duration
}

// NewClient returns a Client for the named function. presigner may be nil,
// in which case no download URL is produced.
func NewClient(cfg linesort.Config, function string, objects s3util.ObjectAPI, presigner s3util.PresignAPI, invoker LambdaAPI) *Client {
	return &Client{
		cfg:       cfg,
		function:  function,
		objects:   objects,
		presigner: presigner,
		invoker:   invoker,
		urlExpiry: DefaultURLExpiry,
	}
}

// Outcome is the result of one submission.
type Outcome struct {
	SourceKey      string
	DestinationKey string
	Response       linesort.Response
	Sorted         string
	DownloadURL    string
}

// Submit uploads localPath, invokes the function and downloads the result.
// A non-200 response from the function is returned as an error alongside
// the Outcome carrying that response.
func (c *Client) Submit(ctx context.Context, localPath string) (Outcome, error) {
	name := filepath.Base(localPath)
	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return Outcome{}, fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}
	// The extension is only a hint; binary content is rejected before upload.
	detected, err := mimetype.DetectFile(localPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("inspect %s: %w", name, err)
	}
	if !strings.HasPrefix(detected.String(), "text/") {
		return Outcome{}, fmt.Errorf("%s has %s content: %w", name, detected.String(), ErrUnsupportedFile)
	}

	out := Outcome{
		SourceKey:      c.cfg.SourcePrefix + name,
		DestinationKey: linesort.DestinationKey(c.cfg, c.cfg.SourcePrefix+name),
	}
	logger := log.With().Str("sourceKey", out.SourceKey).Str("function", c.function).Logger()

	if err := s3util.UploadFile(ctx, c.objects, c.cfg.InputBucket, out.SourceKey, localPath, contentType); err != nil {
		return out, fmt.Errorf("upload: %w", err)
	}
	logger.Info().Str("bucket", c.cfg.InputBucket).Msg("File uploaded")

	resp, err := c.invoke(ctx, out.SourceKey)
	if err != nil {
		return out, err
	}
	out.Response = resp
	if resp.StatusCode != 200 {
		msg, _ := resp.Message()
		return out, fmt.Errorf("sort failed (status %d): %s", resp.StatusCode, msg)
	}
	logger.Info().Msg("Sort function completed")

	data, err := s3util.NewStore(c.objects).Get(ctx, c.cfg.OutputBucket, out.DestinationKey)
	if err != nil {
		return out, fmt.Errorf("download sorted file: %w", err)
	}
	out.Sorted = string(data)

	if c.presigner != nil {
		url, err := s3util.GeneratePresignedURL(ctx, c.presigner, c.cfg.OutputBucket, out.DestinationKey, c.urlExpiry)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to presign download URL")
		} else {
			out.DownloadURL = url
		}
	}
	return out, nil
}

// notificationPayload builds the same S3 notification shape the bucket
// trigger delivers.
func (c *Client) notificationPayload(key string) ([]byte, error) {
	evt := events.S3Event{
		Records: []events.S3EventRecord{{
			EventSource: "aws:s3",
			EventName:   "ObjectCreated:Put",
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: c.cfg.InputBucket},
				Object: events.S3Object{Key: key},
			},
		}},
	}
	return json.Marshal(evt)
}

func (c *Client) invoke(ctx context.Context, key string) (linesort.Response, error) {
	payload, err := c.notificationPayload(key)
	if err != nil {
		return linesort.Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	result, err := c.invoker.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(c.function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return linesort.Response{}, fmt.Errorf("invoke %s: %w", c.function, err)
	}
	if result.FunctionError != nil {
		return linesort.Response{}, fmt.Errorf("invoke %s: function error %s: %s", c.function, aws.ToString(result.FunctionError), result.Payload)
	}

	var resp linesort.Response
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return linesort.Response{}, fmt.Errorf("decode function response: %w", err)
	}
	return resp, nil
}
