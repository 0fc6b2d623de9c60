package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantBackend talks to Qdrant over its REST API.
type QdrantBackend struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      string          `json:"id"`
	Score   float64         `json:"score,omitempty"`
	Payload json.RawMessage `json:"payload"`
	Vector  json.RawMessage `json:"vector,omitempty"`
}

func NewQdrantBackend(ctx context.Context, log *logger.Logger, cfg QdrantConfig) (*QdrantBackend, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, opErr("bootstrap", OperationErrorValidation, "qdrant url is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	q := &QdrantBackend{
		log:     log.With("service", "QdrantBackend"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	if err := q.verifyReady(ctx); err != nil {
		return nil, err
	}
	log.Info("Qdrant vector store selected", "provider", "qdrant", "url", q.baseURL)
	return q, nil
}

func (q *QdrantBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	if err := q.doJSON(ctx, "collection_exists", http.MethodGet, collectionPath(name, "/exists"), nil, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (q *QdrantBackend) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	const op = "create_collection"
	vectors := map[string]any{}
	if spec.UseVectorIndex {
		if spec.Dim <= 0 {
			return opErr(op, OperationErrorValidation, "vector size must be positive", nil)
		}
		vectors = map[string]any{"size": spec.Dim, "distance": "Cosine"}
	}
	req := map[string]any{"vectors": vectors}
	if err := q.doJSON(ctx, op, http.MethodPut, collectionPath(spec.Name, ""), req, nil); err != nil {
		return err
	}
	q.log.Info("collection created", "collection", spec.Name, "vector_index", spec.UseVectorIndex, "size", spec.Dim)
	return nil
}

func (q *QdrantBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		var vector any = map[string]any{}
		if p.Vector != nil {
			vector = p.Vector
		}
		payload := p.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}
		out = append(out, map[string]any{
			"id":      p.ID.String(),
			"vector":  vector,
			"payload": payload,
		})
	}
	return q.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), map[string]any{"points": out}, nil)
}

func (q *QdrantBackend) Scroll(ctx context.Context, collection string, filter Filter, limit int, offset *uuid.UUID, withVectors bool) ([]Point, *uuid.UUID, error) {
	const op = "scroll"
	qf, err := translateFilter(filter)
	if err != nil {
		return nil, nil, opErr(op, OperationErrorValidation, "translate filter failed", err)
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	if qf != nil {
		req["filter"] = qf
	}
	if offset != nil {
		req["offset"] = offset.String()
	}

	var result struct {
		Points         []qdrantPoint   `json:"points"`
		NextPageOffset json.RawMessage `json:"next_page_offset"`
	}
	if err := q.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/scroll"), req, &result); err != nil {
		return nil, nil, err
	}

	points := make([]Point, 0, len(result.Points))
	for _, item := range result.Points {
		p, err := item.toPoint(op)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, p)
	}

	var next *uuid.UUID
	if raw := strings.TrimSpace(string(result.NextPageOffset)); raw != "" && raw != "null" {
		var s string
		if err := json.Unmarshal(result.NextPageOffset, &s); err != nil {
			return nil, nil, opErr(op, OperationErrorDecodeFailed, "decode next_page_offset failed", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, nil, opErr(op, OperationErrorDecodeFailed, "next_page_offset is not a uuid", err)
		}
		next = &id
	}
	return points, next, nil
}

func (q *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter, withVectors bool) ([]ScoredPoint, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	qf, err := translateFilter(filter)
	if err != nil {
		return nil, opErr(op, OperationErrorValidation, "translate filter failed", err)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	if qf != nil {
		req["filter"] = qf
	}

	var raw []qdrantPoint
	if err := q.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}
	out := make([]ScoredPoint, 0, len(raw))
	for _, item := range raw {
		p, err := item.toPoint(op)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredPoint{Point: p, Score: item.Score})
	}
	return out, nil
}

func (q *QdrantBackend) Close() error {
	q.http.CloseIdleConnections()
	return nil
}

func (p qdrantPoint) toPoint(op string) (Point, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Point{}, opErr(op, OperationErrorDecodeFailed, fmt.Sprintf("point id %q is not a uuid", p.ID), err)
	}
	out := Point{ID: id, Payload: p.Payload}
	if raw := bytes.TrimSpace(p.Vector); len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &out.Vector); err != nil {
			return Point{}, opErr(op, OperationErrorDecodeFailed, "decode vector failed", err)
		}
	}
	return out, nil
}

func translateFilter(filter Filter) (map[string]any, error) {
	conds, err := filter.conditions()
	if err != nil || len(conds) == 0 {
		return nil, err
	}
	must := make([]any, 0, len(conds))
	for _, c := range conds {
		must = append(must, map[string]any{
			"key":   c.Key,
			"match": map[string]any{"value": c.Value},
		})
	}
	return map[string]any{"must": must}, nil
}

func (q *QdrantBackend) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	q.setHeaders(req)
	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (q *QdrantBackend) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

func (q *QdrantBackend) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	q.setHeaders(req)

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{
			Code:       OperationErrorNotFound,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
			Cause:      ErrCollectionNotFound,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func collectionPath(name, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}

var _ Backend = (*QdrantBackend)(nil)
