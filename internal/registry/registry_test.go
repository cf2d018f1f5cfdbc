package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroliko/kafka-proxy/internal/avro/schema"
)

func TestResolveBySchemaID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schemas/ids/7", r.URL.Path)
		w.Write([]byte(`{"schema":"{\"type\":\"int\"}"}`))
	}))
	defer srv.Close()

	id := 7
	resolved, err := Resolve(context.Background(), Config{URL: srv.URL, SchemaID: &id})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), resolved.ID)
	assert.Equal(t, schema.Int, resolved.Schema.Kind())
}

func TestResolveByTopicNameStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subjects/orders-value/versions/latest", r.URL.Path)
		w.Write([]byte(`{"id":3,"schema":"{\"type\":\"string\"}","version":1}`))
	}))
	defer srv.Close()

	resolved, err := Resolve(context.Background(), Config{URL: srv.URL, Topic: "orders", Strategy: TopicName})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), resolved.ID)
	assert.Equal(t, schema.String, resolved.Schema.Kind())
}

func TestResolveByTopicRecordNameStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subjects/orders-Order/versions/latest", r.URL.Path)
		w.Write([]byte(`{"id":4,"schema":"{\"type\":\"boolean\"}","version":1}`))
	}))
	defer srv.Close()

	resolved, err := Resolve(context.Background(), Config{
		URL: srv.URL, Topic: "orders", RecordName: "Order", Strategy: TopicRecordName,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), resolved.ID)
}

func TestResolveNotFoundIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	id := 99
	_, err := Resolve(context.Background(), Config{URL: srv.URL, SchemaID: &id})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetByIDCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"schema":"{\"type\":\"long\"}"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetByID(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
