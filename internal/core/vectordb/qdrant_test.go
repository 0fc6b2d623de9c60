package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

func TestQdrantUpsertRequestShape(t *testing.T) {
	id := uuid.MustParse("5d41402a-bc4b-4a76-b971-9d911017c592")
	var captured map[string]any
	q := newTestQdrant(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/embedded_posts/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/embedded_posts/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Fatalf("api-key header: want=%q got=%q", "secret", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	err := q.Upsert(context.Background(), "embedded_posts", []Point{
		{ID: id, Vector: []float32{1, 0, 0}, Payload: json.RawMessage(`{"content":"hello"}`)},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	points, ok := captured["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("points: got=%v", captured["points"])
	}
	first := points[0].(map[string]any)
	if first["id"] != id.String() {
		t.Fatalf("point id: want=%s got=%v", id, first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload["content"] != "hello" {
		t.Fatalf("payload content: got=%v", payload["content"])
	}
}

func TestQdrantNotFoundMapsToCollectionNotFound(t *testing.T) {
	q := newTestQdrant(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"Not found: Collection embedded_posts doesn't exist!"}}`))),
		}, nil
	})

	err := q.Upsert(context.Background(), "embedded_posts", []Point{{ID: uuid.New(), Vector: []float32{1}}})
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("want ErrCollectionNotFound, got %v", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.StatusCode != http.StatusNotFound || opErr.Code != OperationErrorNotFound {
		t.Fatalf("operation error: got=%#v", opErr)
	}
}

func TestQdrantCreateCollectionWithoutVectors(t *testing.T) {
	var captured map[string]any
	q := newTestQdrant(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/cleaned_posts" {
			t.Fatalf("request: got=%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, true), nil
	})

	if err := q.CreateCollection(context.Background(), CollectionSpec{Name: "cleaned_posts"}); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	vectors, ok := captured["vectors"].(map[string]any)
	if !ok || len(vectors) != 0 {
		t.Fatalf("vectors: want empty object got=%v", captured["vectors"])
	}
}

func TestQdrantScrollDecodesNextOffset(t *testing.T) {
	first := uuid.New()
	next := uuid.New()
	var captured map[string]any
	q := newTestQdrant(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/embedded_articles/points/scroll" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{
			"points": []map[string]any{
				{"id": first.String(), "payload": map[string]any{"link": "https://x"}, "vector": []float32{0.5, 0.5}},
			},
			"next_page_offset": next.String(),
		}), nil
	})

	points, offset, err := q.Scroll(context.Background(), "embedded_articles", Filter{"author_id": first}, 1, nil, true)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(points) != 1 || points[0].ID != first || len(points[0].Vector) != 2 {
		t.Fatalf("points: got=%+v", points)
	}
	if offset == nil || *offset != next {
		t.Fatalf("offset: want=%s got=%v", next, offset)
	}

	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "author_id" {
		t.Fatalf("filter key: got=%v", cond["key"])
	}
	if cond["match"].(map[string]any)["value"] != first.String() {
		t.Fatalf("filter value: got=%v", cond["match"])
	}
	if captured["with_vector"] != true {
		t.Fatalf("with_vector: got=%v", captured["with_vector"])
	}
}

func TestQdrantEnvelopeErrorStatus(t *testing.T) {
	q := newTestQdrant(t, func(r *http.Request) (*http.Response, error) {
		raw := []byte(`{"result":null,"status":{"error":"Wrong input: vector dimension error"},"time":0.1}`)
		return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: io.NopCloser(bytes.NewReader(raw))}, nil
	})

	_, err := q.Search(context.Background(), "embedded_posts", []float32{1, 2}, 3, nil, false)
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorQueryFailed {
		t.Fatalf("want query_failed operation error, got %v", err)
	}
	if opErr.Message != "Wrong input: vector dimension error" {
		t.Fatalf("message: got=%q", opErr.Message)
	}
}

func newTestQdrant(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *QdrantBackend {
	t.Helper()
	return &QdrantBackend{
		log:     newTestLogger(t),
		baseURL: "http://qdrant.local",
		apiKey:  "secret",
		http:    &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	payload := map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
