package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(step int) Record {
	return Record{
		TaskID:          "task-1",
		StepIndex:       step,
		Handler:         "network",
		Outcome:         "handoff",
		DurationMS:      12,
		ContextKeyCount: 4,
		Timestamp:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStreamSink_EmitsOneJSONLinePerRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewStreamSink(&buf)
	require.NoError(t, sink.Append(sampleRecord(0)))
	require.NoError(t, sink.Append(sampleRecord(1)))

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, "task-1", rec.TaskID)
		assert.Equal(t, lines, rec.StepIndex)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestStreamSink_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_ = sink.Append(sampleRecord(step))
		}(i)
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	count := 0
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "interleaved write corrupted a line")
		count++
	}
	assert.Equal(t, 16, count)
}

type failingSink struct{ err error }

func (f *failingSink) Append(Record) error { return f.err }

func TestMultiSink_DeliversToAllAndReportsFirstError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	boom := errors.New("boom")
	sink := NewMultiSink(&failingSink{err: boom}, NewStreamSink(&buf))

	err := sink.Append(sampleRecord(0))
	require.ErrorIs(t, err, boom)
	assert.NotZero(t, buf.Len(), "healthy sink must still receive the record")
}

func TestStore_AppendAndTrail(t *testing.T) {
	t.Parallel()

	store, err := OpenStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(sampleRecord(i)))
	}

	trail, err := store.Trail("task-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	for i, row := range trail {
		assert.Equal(t, i, row.StepIndex)
		assert.Equal(t, "network", row.Handler)
	}

	empty, err := store.Trail("missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
