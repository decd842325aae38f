// Package events publishes a LinesSorted event to EventBridge after each
// successful sort, so downstream consumers can react without polling the
// output bucket.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
)

const (
	// Source is the EventBridge source of every emitted event.
	Source = "line-sort"
	// DetailTypeLinesSorted is the detail type of a completed sort.
	DetailTypeLinesSorted = "LinesSorted"
)

// PutEventsAPI is the subset of *eventbridge.Client used by Emitter.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// LinesSorted is the event detail.
type LinesSorted struct {
	linesort.Result
	SortedAt time.Time `json:"sortedAt"`
}

// Emitter implements linesort.Notifier.
type Emitter struct {
	client  PutEventsAPI
	busName string
	now     func() time.Time
}

// NewEmitter returns an Emitter putting events on busName.
func NewEmitter(client PutEventsAPI, busName string) *Emitter {
	return &Emitter{client: client, busName: busName, now: time.Now}
}

// Notify puts one LinesSorted event for result.
func (e *Emitter) Notify(ctx context.Context, result linesort.Result) error {
	detail, err := json.Marshal(LinesSorted{Result: result, SortedAt: e.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal LinesSorted: %w", err)
	}

	out, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(e.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(DetailTypeLinesSorted),
				Detail:       aws.String(string(detail)),
				Resources:    []string{fmt.Sprintf("arn:aws:s3:::%s/%s", result.OutputBucket, result.DestinationKey)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", out.FailedEntryCount)
	}

	log.Debug().
		Str("bus", e.busName).
		Str("destinationKey", result.DestinationKey).
		Msg("LinesSorted event emitted")
	return nil
}
