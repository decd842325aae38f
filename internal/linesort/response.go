package linesort

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is the payload returned to the invoker. Body holds a JSON-encoded
// string, so a success body looks like "\"Successfully sorted ...\"".
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Message decodes Body back into the plain message text.
func (r Response) Message() (string, error) {
	var msg string
	if err := json.Unmarshal([]byte(r.Body), &msg); err != nil {
		return "", fmt.Errorf("decode response body: %w", err)
	}
	return msg, nil
}

func newResponse(status int, msg string) Response {
	// Marshalling a string cannot fail.
	body, _ := json.Marshal(msg)
	return Response{StatusCode: status, Body: string(body)}
}

// SuccessResponse reports a completed sort written to bucket/key.
func SuccessResponse(bucket, key string) Response {
	return newResponse(http.StatusOK, fmt.Sprintf("Successfully sorted and uploaded to %s/%s", bucket, key))
}

// ErrorResponse maps a failure to its response. Request-shape failures
// report 400 without a source key; everything else reports 500 naming the
// key that was being processed.
func ErrorResponse(err error) Response {
	var e *Error
	if !errors.As(err, &e) {
		return newResponse(http.StatusInternalServerError, fmt.Sprintf("Error processing file: %v", err))
	}
	switch e.Kind {
	case KindBadRequest, KindMalformedNotification:
		if errors.Is(e.Err, errMissingKey) {
			return newResponse(e.Kind.StatusCode(), "Bad Request: Missing file key")
		}
		return newResponse(e.Kind.StatusCode(), "Bad Request: "+e.Err.Error())
	default:
		return newResponse(e.Kind.StatusCode(), fmt.Sprintf("Error processing file %s: %v", e.Key, e.Err))
	}
}
