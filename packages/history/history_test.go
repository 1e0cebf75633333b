package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open("sqlite://"+filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return rec
}

func TestOpen_ColonPrefix(t *testing.T) {
	rec, err := Open("sqlite:"+filepath.Join(t.TempDir(), "h.db"), nil)
	require.NoError(t, err)
	defer rec.Close()

	var n int
	require.NoError(t, rec.db.QueryRow(`SELECT COUNT(*) FROM exchanges`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpen_PlainPath(t *testing.T) {
	rec, err := Open(filepath.Join(t.TempDir(), "h.db"), nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "sqlite://./h.db", want: "./h.db"},
		{in: "sqlite:h.db", want: "h.db"},
		{in: "/tmp/h.db", want: "/tmp/h.db"},
		{in: "postgres://localhost/db", wantErr: true},
		{in: "sqlite://", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseConnectionString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_Success(t *testing.T) {
	rec := openTestRecorder(t)
	ev := http.Event{
		SessionID: "s1",
		Request:   &http.Request{URL: "http://example.test/a"},
		Response: &http.Response{
			StatusCode: 200,
			URL:        "http://example.test/b",
			Body:       []byte("hello"),
			History:    []string{"http://example.test/b"},
		},
		Elapsed: 1500 * time.Microsecond,
	}
	require.NoError(t, rec.Record(context.Background(), ev))

	entries, err := rec.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, http.MethodGet, e.Method)
	assert.Equal(t, "http://example.test/a", e.URL)
	assert.Equal(t, "http://example.test/b", e.FinalURL)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, 5, e.BodySize)
	assert.Equal(t, 1, e.Redirects)
	assert.Equal(t, 1500*time.Microsecond, e.Elapsed)
	assert.Empty(t, e.Error)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestRecord_Failure(t *testing.T) {
	rec := openTestRecorder(t)
	ev := http.Event{
		SessionID: "s1",
		Request:   &http.Request{Method: http.MethodPost, URL: "http://unreachable.invalid"},
		Err:       fmt.Errorf("send: %w", http.ErrConnection),
	}
	rec.AfterSend(context.Background(), ev)

	entries, err := rec.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Status)
	assert.Equal(t, http.ErrConnection.Error(), entries[0].ErrorKind)
	assert.Contains(t, entries[0].Error, "send")
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(ctx, http.Event{
			SessionID: "s",
			Request:   &http.Request{URL: fmt.Sprintf("http://example.test/%d", i)},
		}))
	}

	entries, err := rec.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "http://example.test/4", entries[0].URL)
	assert.Equal(t, "http://example.test/2", entries[2].URL)
}

func TestQuery(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	for _, status := range []int{200, 200, 404} {
		require.NoError(t, rec.Record(ctx, http.Event{
			Request:  &http.Request{URL: "http://example.test"},
			Response: &http.Response{StatusCode: status},
		}))
	}

	result, err := rec.Query(ctx, "SELECT status, COUNT(*) AS n FROM exchanges GROUP BY status ORDER BY status")
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "n"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(200), result.Rows[0]["status"])
	assert.Equal(t, int64(2), result.Rows[0]["n"])
	assert.Equal(t, int64(1), result.Rows[1]["n"])
}

func TestQuery_RejectsWrites(t *testing.T) {
	rec := openTestRecorder(t)
	_, err := rec.Query(context.Background(), "DELETE FROM exchanges")
	assert.Error(t, err)
}

func TestQuery_WritesBehindSelectPrefixFail(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	record := func() {
		require.NoError(t, rec.Record(ctx, http.Event{
			Request:  &http.Request{URL: "http://example.test"},
			Response: &http.Response{StatusCode: 200},
		}))
	}
	record()

	for _, q := range []string{
		"WITH t AS (SELECT 1) DELETE FROM exchanges",
		"WITH t AS (SELECT 1) UPDATE exchanges SET status = 500",
	} {
		_, err := rec.Query(ctx, q)
		assert.Error(t, err, q)
	}

	result, err := rec.Query(ctx, "SELECT status FROM exchanges")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(200), result.Rows[0]["status"])

	// the recorder can still write after a query
	record()
	entries, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecorder_AsSessionHook(t *testing.T) {
	rec := openTestRecorder(t)
	s, err := http.NewSession(http.WithHook(rec))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("http://127.0.0.1:1/")
	require.Error(t, err)

	entries, err := rec.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, s.ID(), entries[0].SessionID)
	assert.Equal(t, http.ErrConnection.Error(), entries[0].ErrorKind)
}
