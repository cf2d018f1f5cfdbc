// Package registry implements a minimal Confluent Schema Registry client:
// resolution of a schema either by explicit id or by a subject-name
// strategy plus topic, with the resolved (id, schema) pair cached for the
// remainder of the process lifetime.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/kroliko/kafka-proxy/internal/avro/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Strategy selects how a schema-registry subject name is derived when no
// explicit schema id is configured.
type Strategy int

const (
	// TopicName derives the subject as "<topic>-value" (the default).
	TopicName Strategy = iota
	// RecordName derives the subject from the record name alone.
	RecordName
	// TopicRecordName derives the subject as "<topic>-<record>".
	TopicRecordName
)

// Config selects how the client resolves a schema at startup.
type Config struct {
	URL string

	// SchemaID, if non-nil, resolves the schema directly by id and takes
	// priority over any subject-name strategy.
	SchemaID *int

	Strategy   Strategy
	Topic      string
	RecordName string

	// HTTPClient overrides the default client; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

type subjectVersionResponse struct {
	ID      int    `json:"id"`
	Schema  string `json:"schema"`
	Version int    `json:"version"`
}

type idResponse struct {
	Schema string `json:"schema"`
}

// Resolved is the cached outcome of a startup schema resolution.
type Resolved struct {
	ID     uint32
	Schema schema.Schema
}

// Client resolves and caches schemas by id for the process lifetime.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	cache map[int]schema.Schema
}

// New constructs a Client against baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		cache:   map[int]schema.Schema{},
	}
}

// Resolve performs the startup resolution described by cfg: fetch by
// explicit schema id when set, otherwise compute a subject name from the
// strategy and fetch its latest version. It retries transient failures
// with an exponential backoff, since the registry may still be starting
// up alongside the proxy.
func Resolve(ctx context.Context, cfg Config) (*Resolved, error) {
	c := New(cfg.URL, cfg.HTTPClient)

	var resolved *Resolved
	op := func() error {
		r, err := c.resolveOnce(ctx, cfg)
		if err != nil {
			return err
		}
		resolved = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("registry: resolve: %w", err)
	}
	return resolved, nil
}

func (c *Client) resolveOnce(ctx context.Context, cfg Config) (*Resolved, error) {
	if cfg.SchemaID != nil {
		s, err := c.getByID(ctx, *cfg.SchemaID)
		if err != nil {
			return nil, err
		}
		return &Resolved{ID: uint32(*cfg.SchemaID), Schema: s}, nil
	}

	subject := subjectName(cfg)
	id, raw, err := c.getLatestBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	s, err := schema.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("registry: parse schema for subject %q: %w", subject, err)
	}

	c.mu.Lock()
	c.cache[id] = s
	c.mu.Unlock()

	return &Resolved{ID: uint32(id), Schema: s}, nil
}

func subjectName(cfg Config) string {
	switch cfg.Strategy {
	case RecordName:
		return cfg.RecordName
	case TopicRecordName:
		return cfg.Topic + "-" + cfg.RecordName
	default:
		return cfg.Topic + "-value"
	}
}

// GetByID returns the schema for id, consulting the in-process cache first.
func (c *Client) GetByID(ctx context.Context, id int) (schema.Schema, error) {
	return c.getByID(ctx, id)
}

func (c *Client) getByID(ctx context.Context, id int) (schema.Schema, error) {
	c.mu.RLock()
	s, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("registry: parse url: %w", err)
	}
	u.Path = "/schemas/ids/" + strconv.Itoa(id)

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var resp idResponse
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("registry: decode response for id %d: %w", id, err)
	}

	parsed, err := schema.Parse([]byte(resp.Schema))
	if err != nil {
		return nil, fmt.Errorf("registry: parse schema %d: %w", id, err)
	}

	c.mu.Lock()
	c.cache[id] = parsed
	c.mu.Unlock()

	return parsed, nil
}

func (c *Client) getLatestBySubject(ctx context.Context, subject string) (int, string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, "", fmt.Errorf("registry: parse url: %w", err)
	}
	u.Path = fmt.Sprintf("/subjects/%s/versions/latest", url.PathEscape(subject))

	body, err := c.get(ctx, u.String())
	if err != nil {
		return 0, "", err
	}

	var resp subjectVersionResponse
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return 0, "", fmt.Errorf("registry: decode response for subject %q: %w", subject, err)
	}
	return resp.ID, resp.Schema, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.schemaregistry.v1+json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry: request %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, backoff.Permanent(fmt.Errorf("registry: %s not found", rawURL))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: %s returned status %d", rawURL, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}
