package linesort

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RequestKind discriminates the two accepted payload shapes.
type RequestKind int

const (
	RequestUnknown RequestKind = iota
	// RequestNotification is an S3 event notification: {"Records": [...]}.
	RequestNotification
	// RequestDirect is a direct invocation: {"key": "..."}.
	RequestDirect
)

func (k RequestKind) String() string {
	switch k {
	case RequestNotification:
		return "notification"
	case RequestDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Request is a normalized invocation. Only SourceKey drives processing;
// Bucket and EventName are recorded from notifications for logging.
type Request struct {
	Kind      RequestKind
	SourceKey string

	Bucket    string
	EventName string
}

var (
	errMissingKey       = errors.New("missing file key")
	errMalformedRecord  = errors.New("malformed notification record")
	errNoRecords        = errors.New("notification has no records")
	errMissingRecordKey = errors.New("notification record has no s3.object.key")
	errNonStringKey     = errors.New("key must be a string")
)

// ParseRequest extracts the source key from a raw invocation payload.
//
// A top-level "Records" field selects the notification shape and takes
// precedence over "key"; only the first record is consulted. Payloads that
// match neither shape fail with KindBadRequest. A Records payload whose
// first record lacks an object key fails with KindMalformedNotification.
func ParseRequest(payload []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return Request{}, newError(KindBadRequest, "", errMissingKey)
	}

	if raw, ok := fields["Records"]; ok {
		return parseNotification(raw)
	}
	if raw, ok := fields["key"]; ok {
		return parseDirect(raw)
	}
	return Request{}, newError(KindBadRequest, "", errMissingKey)
}

// notificationRecord holds the fields read from an S3 event record. The key
// is kept verbatim; events.S3EventRecord would URL-decode it and reject keys
// such as "unsorted/100%.txt".
type notificationRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key *string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

func parseNotification(raw json.RawMessage) (Request, error) {
	var records []notificationRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return Request{}, newError(KindMalformedNotification, "", fmt.Errorf("%w: %v", errMalformedRecord, err))
	}
	if len(records) == 0 {
		return Request{}, newError(KindMalformedNotification, "", errNoRecords)
	}

	first := records[0]
	if first.S3.Object.Key == nil {
		return Request{}, newError(KindMalformedNotification, "", errMissingRecordKey)
	}
	return Request{
		Kind:      RequestNotification,
		SourceKey: *first.S3.Object.Key,
		Bucket:    first.S3.Bucket.Name,
		EventName: first.EventName,
	}, nil
}

func parseDirect(raw json.RawMessage) (Request, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Request{}, newError(KindBadRequest, "", errNonStringKey)
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return Request{}, newError(KindBadRequest, "", errNonStringKey)
	}
	return Request{Kind: RequestDirect, SourceKey: key}, nil
}
