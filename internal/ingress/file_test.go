package ingress

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStreamYieldsLinesAndSkipsMalformedBase64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	content := "aGVsbG8=\nnot-base64!!\nd29ybGQ=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f := &File{Path: path, Base64: true, ConcurrencyLimitN: 4, Log: testLogger()}
	ch, err := f.Stream(context.Background(), make(chan struct{}))
	require.NoError(t, err)

	var payloads [][]byte
	for res := range ch {
		if res.Err != nil {
			continue
		}
		payloads = append(payloads, res.Payload)
	}

	require.Len(t, payloads, 2)
	assert.Equal(t, "hello", string(payloads[0]))
	assert.Equal(t, "world", string(payloads[1]))
}

func TestFileStreamMissingFileErrors(t *testing.T) {
	f := &File{Path: filepath.Join(t.TempDir(), "missing"), Log: testLogger()}
	_, err := f.Stream(context.Background(), make(chan struct{}))
	assert.Error(t, err)
}

func TestFileStreamRespectsShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0o644))

	f := &File{Path: path, Log: testLogger()}
	shutdown := make(chan struct{})
	close(shutdown)

	ch, err := f.Stream(context.Background(), shutdown)
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel never closed after shutdown")
	}
}
