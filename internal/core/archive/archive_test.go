package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	objectclient "github.com/markdave123-py/contexta-pipeline/internal/core/object-client"
	"github.com/markdave123-py/contexta-pipeline/internal/platform/logger"
)

type memObjects struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{files: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) UploadFile(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return "mem://" + key, nil
}

func (m *memObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", objectclient.ErrNotFound, key)
	}
	return data, nil
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "runs/feature_engineering/abc.json", RunKey("feature_engineering", "abc"))

	key := PageKey("https://Medium.com/p/1")
	assert.True(t, strings.HasPrefix(key, "pages/medium.com/"), key)
	assert.True(t, strings.HasSuffix(key, ".html"))
	assert.Equal(t, key, PageKey("https://Medium.com/p/1"))
	assert.NotEqual(t, key, PageKey("https://Medium.com/p/2"))
}

func TestS3RecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	rec := NewS3Recorder(objects, logger.Nop())

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := Run{
		Pipeline:   "digital_data_etl",
		RunID:      "run-1",
		Status:     StatusSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Summary:    map[string]any{"crawled": 2},
	}
	require.NoError(t, rec.RecordRun(ctx, run))
	assert.Equal(t, "application/json", objects.types["runs/digital_data_etl/run-1.json"])

	back, err := rec.LoadRun(ctx, "digital_data_etl", "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, back.Status)
	assert.Equal(t, float64(2), back.Summary.(map[string]any)["crawled"])

	_, err = rec.LoadRun(ctx, "digital_data_etl", "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, rec.RecordPage(ctx, "https://medium.com/p/1", []byte("<html></html>")))
	assert.Contains(t, objects.files, PageKey("https://medium.com/p/1"))
}

func TestLogRecorderKeepsRecentRuns(t *testing.T) {
	ctx := context.Background()
	rec := NewLogRecorder(logger.Nop())

	for i := 0; i < maxKeptRuns+5; i++ {
		require.NoError(t, rec.RecordRun(ctx, Run{Pipeline: "p", RunID: fmt.Sprint(i), Status: StatusSucceeded}))
	}

	_, err := rec.LoadRun(ctx, "p", "0")
	assert.ErrorIs(t, err, ErrRunNotFound)
	last, err := rec.LoadRun(ctx, "p", fmt.Sprint(maxKeptRuns+4))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, last.Status)
}

func TestRecordersAcceptNilLogger(t *testing.T) {
	ctx := context.Background()
	rec := NewLogRecorder(nil)
	require.NoError(t, rec.RecordRun(ctx, Run{Pipeline: "p", RunID: "r", Status: StatusFailed}))
	run, err := rec.LoadRun(ctx, "p", "r")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)

	assert.NotNil(t, NewS3Recorder(nil, nil))
}
