package ingress

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLinePassthrough(t *testing.T) {
	out, err := decodeLine([]byte("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestDecodeLineBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("hello"))
	out, err := decodeLine([]byte(encoded), true)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestDecodeLineBase64Malformed(t *testing.T) {
	_, err := decodeLine([]byte("not base64!!"), true)
	assert.Error(t, err)
}
