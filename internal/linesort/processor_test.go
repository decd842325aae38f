package linesort

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// memStore is an in-memory Store keyed by "bucket/key".
type memStore struct {
	objects map[string][]byte
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, data []byte) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

type recordingNotifier struct {
	results []Result
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r Result) error {
	n.results = append(n.results, r)
	return n.err
}

func mustMessage(t *testing.T, r Response) string {
	t.Helper()
	msg, err := r.Message()
	if err != nil {
		t.Fatalf("body is not a JSON string: %v (%s)", err, r.Body)
	}
	return msg
}

func TestHandle_DirectTxtSuccess(t *testing.T) {
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/data.txt"] = []byte("banana\napple\ncherry")
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"key":"unsorted/data.txt"}`))

	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	if got := string(store.objects["sort-out-bucket/sorted-unsorted/sorted-data.srt"]); got != "apple\nbanana\ncherry" {
		t.Errorf("unexpected sorted content %q", got)
	}
	want := "Successfully sorted and uploaded to sort-out-bucket/sorted-unsorted/sorted-data.srt"
	if msg := mustMessage(t, resp); msg != want {
		t.Errorf("expected message %q, got %q", want, msg)
	}
}

func TestHandle_NoExtension(t *testing.T) {
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/readme"] = []byte("b\na")
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"key":"unsorted/readme"}`))

	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	if got := string(store.objects["sort-out-bucket/sorted-unsorted/sorted-readme.srt"]); got != "a\nb" {
		t.Errorf("unexpected sorted content %q", got)
	}
}

func TestHandle_NotificationPercentKey(t *testing.T) {
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/50%off.txt"] = []byte("z\ny")
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"Records":[{"s3":{"bucket":{"name":"sort-in-bucket"},"object":{"key":"unsorted/50%off.txt"}}}]}`))

	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d (%s)", resp.StatusCode, resp.Body)
	}
	if got := string(store.objects["sort-out-bucket/sorted-unsorted/sorted-50%off.srt"]); got != "y\nz" {
		t.Errorf("unexpected sorted content %q", got)
	}
}

func TestHandle_NotificationEmptyKey(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"Records":[{"s3":{"object":{"key":""}}}]}`))

	if resp.StatusCode != 500 {
		t.Fatalf("expected status 500, got %d (%s)", resp.StatusCode, resp.Body)
	}
	if store.gets != 0 {
		t.Errorf("expected no fetch, got %d", store.gets)
	}
}

func TestHandle_NotificationMissingObject(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(DefaultConfig(), store)
	payload := `{"Records":[{"s3":{"bucket":{"name":"sort-in-bucket"},"object":{"key":"unsorted/x.txt"}}}]}`

	resp := p.Handle(context.Background(), []byte(payload))

	if resp.StatusCode != 500 {
		t.Fatalf("expected status 500, got %d", resp.StatusCode)
	}
	msg := mustMessage(t, resp)
	if !strings.HasPrefix(msg, "Error processing file unsorted/x.txt: ") {
		t.Errorf("message does not name the source key: %q", msg)
	}
	if !strings.Contains(msg, "fetch") || !strings.Contains(msg, "object not found") {
		t.Errorf("message does not describe the fetch failure: %q", msg)
	}
	if store.puts != 0 {
		t.Errorf("expected no writes, got %d", store.puts)
	}
}

func TestHandle_MissingKey(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"something":"else"}`))

	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
	if resp.Body != `"Bad Request: Missing file key"` {
		t.Errorf("unexpected body %s", resp.Body)
	}
	if store.gets != 0 || store.puts != 0 {
		t.Errorf("expected no store access, got %d gets and %d puts", store.gets, store.puts)
	}
}

func TestHandle_MalformedNotification(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(DefaultConfig(), store)

	resp := p.Handle(context.Background(), []byte(`{"Records":[{"s3":{}}]}`))

	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
	if store.gets != 0 {
		t.Errorf("expected no store access, got %d gets", store.gets)
	}
}

func TestHandle_WrongPrefix(t *testing.T) {
	for _, key := range []string{"sorted/data.txt", "data.txt", "", "Unsorted/data.txt", "x/unsorted/data.txt"} {
		store := newMemStore()
		store.objects["sort-in-bucket/"+key] = []byte("b\na")
		p := NewProcessor(DefaultConfig(), store)

		payload, _ := json.Marshal(map[string]string{"key": key})
		resp := p.Handle(context.Background(), payload)

		if resp.StatusCode != 500 {
			t.Errorf("key %q: expected status 500, got %d", key, resp.StatusCode)
		}
		want := fmt.Sprintf("Error processing file %s: File is not in the expected 'unsorted/' folder.", key)
		if msg := mustMessage(t, resp); msg != want {
			t.Errorf("key %q: expected %q, got %q", key, want, msg)
		}
		if store.gets != 0 || store.puts != 0 {
			t.Errorf("key %q: expected no store access", key)
		}
	}
}

func TestProcess_ErrorKinds(t *testing.T) {
	storeErr := errors.New("access denied")

	tests := []struct {
		name  string
		setup func(*memStore)
		kind  Kind
		wrap  error
	}{
		{
			name:  "fetch not found",
			setup: func(m *memStore) {},
			kind:  KindFetch,
			wrap:  ErrObjectNotFound,
		},
		{
			name:  "fetch denied",
			setup: func(m *memStore) { m.getErr = storeErr },
			kind:  KindFetch,
			wrap:  storeErr,
		},
		{
			name: "invalid utf-8",
			setup: func(m *memStore) {
				m.objects["sort-in-bucket/unsorted/bin.txt"] = []byte{0xff, 0xfe, '\n', 'a'}
			},
			kind: KindDecode,
		},
		{
			name: "write denied",
			setup: func(m *memStore) {
				m.objects["sort-in-bucket/unsorted/bin.txt"] = []byte("b\na")
				m.putErr = storeErr
			},
			kind: KindWrite,
			wrap: storeErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			tt.setup(store)
			p := NewProcessor(DefaultConfig(), store)

			_, err := p.Process(context.Background(), "unsorted/bin.txt")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, got)
			}
			if tt.wrap != nil && !errors.Is(err, tt.wrap) {
				t.Errorf("expected error to wrap %v, got %v", tt.wrap, err)
			}
			var e *Error
			if errors.As(err, &e) && e.Key != "unsorted/bin.txt" {
				t.Errorf("expected key on error, got %q", e.Key)
			}
			if resp := ErrorResponse(err); resp.StatusCode != 500 {
				t.Errorf("expected status 500, got %d", resp.StatusCode)
			}
		})
	}
}

func TestProcess_OverwritesExisting(t *testing.T) {
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/data.txt"] = []byte("2\n1")
	store.objects["sort-out-bucket/sorted-unsorted/sorted-data.srt"] = []byte("stale")
	p := NewProcessor(DefaultConfig(), store)

	result, err := p.Process(context.Background(), "unsorted/data.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(store.objects["sort-out-bucket/sorted-unsorted/sorted-data.srt"]); got != "1\n2" {
		t.Errorf("expected overwrite, got %q", got)
	}
	if result.LineCount != 2 || result.Bytes != 3 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestProcess_CustomBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputBucket = "in"
	cfg.OutputBucket = "out"
	store := newMemStore()
	store.objects["in/unsorted/a.txt"] = []byte("y\nx")
	p := NewProcessor(cfg, store)

	result, err := p.Process(context.Background(), "unsorted/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OutputBucket != "out" || result.InputBucket != "in" {
		t.Errorf("unexpected buckets in result %+v", result)
	}
	if _, ok := store.objects["out/sorted-unsorted/sorted-a.srt"]; !ok {
		t.Error("expected object in custom output bucket")
	}
}

func TestHandle_NotifierCalledOnSuccessOnly(t *testing.T) {
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/data.txt"] = []byte("b\na")
	n := &recordingNotifier{err: errors.New("bus unavailable")}
	p := NewProcessor(DefaultConfig(), store, WithNotifier(n))

	resp := p.Handle(context.Background(), []byte(`{"key":"unsorted/data.txt"}`))
	if resp.StatusCode != 200 {
		t.Fatalf("notifier failure must not change status, got %d", resp.StatusCode)
	}
	p.Handle(context.Background(), []byte(`{"key":"unsorted/missing.txt"}`))

	if len(n.results) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.results))
	}
	if n.results[0].DestinationKey != "sorted-unsorted/sorted-data.srt" {
		t.Errorf("unexpected notification %+v", n.results[0])
	}
}

func TestHandle_EmitsMetrics(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	store := newMemStore()
	store.objects["sort-in-bucket/unsorted/data.txt"] = []byte("b\na\nc")
	var buf bytes.Buffer
	p := NewProcessor(DefaultConfig(), store, WithMetrics("LineSort", &buf))

	p.Handle(context.Background(), []byte(`{"key":"unsorted/data.txt"}`))

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("metrics output is not JSON: %v (%s)", err, buf.String())
	}
	if doc["Outcome"] != "success" {
		t.Errorf("expected Outcome=success, got %v", doc["Outcome"])
	}
	if doc["LinesSorted"] != float64(3) {
		t.Errorf("expected LinesSorted=3, got %v", doc["LinesSorted"])
	}
	if doc["sourceKey"] != "unsorted/data.txt" {
		t.Errorf("expected sourceKey property, got %v", doc["sourceKey"])
	}

	buf.Reset()
	p.Handle(context.Background(), []byte(`{}`))
	doc = nil
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("metrics output is not JSON: %v", err)
	}
	if doc["ErrorKind"] != "BadRequest" {
		t.Errorf("expected ErrorKind=BadRequest, got %v", doc["ErrorKind"])
	}
}

func TestErrorResponse_UnclassifiedError(t *testing.T) {
	resp := ErrorResponse(errors.New("boom"))
	if resp.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
}
