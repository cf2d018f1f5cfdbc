package netutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return log
}

func TestListenUnixUnlinksOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock")

	l, err := ListenUnix(path, testLogger())
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, l.Close())

	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListenUnixgramUnlinksOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dgram.sock")

	l, err := ListenUnixgram(path, testLogger())
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, l.Close())

	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
