package linesort

import "testing"

func TestParseRequest_Notification(t *testing.T) {
	payload := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"sort-in-bucket"},"object":{"key":"unsorted/x.txt"}}}]}`

	req, err := ParseRequest([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != RequestNotification {
		t.Errorf("expected notification kind, got %s", req.Kind)
	}
	if req.SourceKey != "unsorted/x.txt" {
		t.Errorf("expected key unsorted/x.txt, got %q", req.SourceKey)
	}
	if req.Bucket != "sort-in-bucket" {
		t.Errorf("expected bucket sort-in-bucket, got %q", req.Bucket)
	}
	if req.EventName != "ObjectCreated:Put" {
		t.Errorf("expected event name ObjectCreated:Put, got %q", req.EventName)
	}
}

func TestParseRequest_OnlyFirstRecord(t *testing.T) {
	payload := `{"Records":[{"s3":{"object":{"key":"unsorted/first.txt"}}},{"s3":{"object":{"key":"unsorted/second.txt"}}}]}`

	req, err := ParseRequest([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.SourceKey != "unsorted/first.txt" {
		t.Errorf("expected first record key, got %q", req.SourceKey)
	}
}

func TestParseRequest_RecordsTakePrecedence(t *testing.T) {
	payload := `{"key":"unsorted/direct.txt","Records":[{"s3":{"object":{"key":"unsorted/event.txt"}}}]}`

	req, err := ParseRequest([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != RequestNotification || req.SourceKey != "unsorted/event.txt" {
		t.Errorf("expected notification key to win, got %s %q", req.Kind, req.SourceKey)
	}
}

func TestParseRequest_Direct(t *testing.T) {
	req, err := ParseRequest([]byte(`{"key":"unsorted/readme"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != RequestDirect {
		t.Errorf("expected direct kind, got %s", req.Kind)
	}
	if req.SourceKey != "unsorted/readme" {
		t.Errorf("expected key unsorted/readme, got %q", req.SourceKey)
	}
}

func TestParseRequest_DirectEmptyKeyIsAccepted(t *testing.T) {
	// An empty key is present, so it is not a bad request; the prefix check
	// rejects it later.
	req, err := ParseRequest([]byte(`{"key":""}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != RequestDirect || req.SourceKey != "" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestParseRequest_NotificationKeyVerbatim(t *testing.T) {
	tests := []string{
		"unsorted/100%.txt",
		"unsorted/50%off.txt",
		"unsorted/my+file.txt",
		"unsorted/a%20b.txt",
	}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			payload := `{"Records":[{"s3":{"bucket":{"name":"sort-in-bucket"},"object":{"key":"` + key + `"}}}]}`
			req, err := ParseRequest([]byte(payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.SourceKey != key {
				t.Errorf("expected key %q unchanged, got %q", key, req.SourceKey)
			}
		})
	}
}

func TestParseRequest_NotificationEmptyKeyIsAccepted(t *testing.T) {
	// Same as the direct shape: a present empty key is left to the prefix check.
	req, err := ParseRequest([]byte(`{"Records":[{"s3":{"object":{"key":""}}}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != RequestNotification || req.SourceKey != "" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestParseRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    Kind
	}{
		{"empty object", `{}`, KindBadRequest},
		{"unrelated fields", `{"bucket":"sort-in-bucket"}`, KindBadRequest},
		{"not json", `not json`, KindBadRequest},
		{"json array", `[]`, KindBadRequest},
		{"json null", `null`, KindBadRequest},
		{"numeric key", `{"key":42}`, KindBadRequest},
		{"null key", `{"key":null}`, KindBadRequest},
		{"empty records", `{"Records":[]}`, KindMalformedNotification},
		{"records not array", `{"Records":{"s3":{}}}`, KindMalformedNotification},
		{"record without s3", `{"Records":[{}]}`, KindMalformedNotification},
		{"record without object key", `{"Records":[{"s3":{"object":{}}}]}`, KindMalformedNotification},
		{"record with null key", `{"Records":[{"s3":{"object":{"key":null}}}]}`, KindMalformedNotification},
		{"record with numeric key", `{"Records":[{"s3":{"object":{"key":7}}}]}`, KindMalformedNotification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("expected kind %s, got %s (%v)", tt.kind, got, err)
			}
			if got := KindOf(err).StatusCode(); got != 400 {
				t.Errorf("expected status 400, got %d", got)
			}
		})
	}
}
