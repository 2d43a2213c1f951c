package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client with listing-index operations.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Index returns the index name.
func (c *Client) Index() string {
	return c.index
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES index mapping for listings.
var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"link": { "type": "keyword" },
			"title": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"date": { "type": "text" },
			"starts_at": { "type": "date" },
			"ends_at": { "type": "date" },
			"prize": { "type": "text" },
			"participants": { "type": "keyword" },
			"image": { "type": "keyword", "index": false },
			"tags": { "type": "keyword" },
			"source": { "type": "keyword" },
			"run_id": { "type": "keyword" },
			"indexed_at": { "type": "date" }
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Document is the indexed form of a listing.
type Document struct {
	ID           string     `json:"id"`
	Link         string     `json:"link"`
	Title        string     `json:"title"`
	Date         *string    `json:"date"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	Prize        *string    `json:"prize"`
	Participants *string    `json:"participants"`
	Image        *string    `json:"image"`
	Tags         []string   `json:"tags"`
	Source       string     `json:"source"`
	RunID        string     `json:"run_id,omitempty"`
	IndexedAt    time.Time  `json:"indexed_at"`
}

// NewDocument converts a listing to its indexed form.
func NewDocument(l models.Listing, runID string, now time.Time) Document {
	var date *string
	if !l.Date.IsZero() {
		d := l.Date.Display()
		date = &d
	}
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return Document{
		ID:           models.GenerateListingID(l.Link),
		Link:         l.Link,
		Title:        l.Title,
		Date:         date,
		StartsAt:     l.Date.Start,
		EndsAt:       l.Date.End,
		Prize:        l.Prize,
		Participants: l.Participants,
		Image:        l.Image,
		Tags:         tags,
		Source:       string(l.Source),
		RunID:        runID,
		IndexedAt:    now,
	}
}

// bulkResponse is the subset of the bulk API response we inspect.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// IndexListings upserts docs with one bulk request. Re-indexing the same
// link overwrites the previous document. Returns the number of documents
// ES accepted; per-document rejections are reported in the error.
func (c *Client) IndexListings(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": c.index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("error bulk indexing (status %d): %s", res.StatusCode, res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	indexed := 0
	var firstErr string
	failed := 0
	for _, item := range br.Items {
		for _, result := range item {
			if result.Error != nil || result.Status >= 300 {
				failed++
				if firstErr == "" && result.Error != nil {
					firstErr = fmt.Sprintf("%s: %s", result.Error.Type, result.Error.Reason)
				}
				continue
			}
			indexed++
		}
	}

	if failed > 0 {
		return indexed, fmt.Errorf("%d of %d documents rejected (first: %s)", failed, len(docs), firstErr)
	}
	return indexed, nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool     `json:"found"`
	Source Document `json:"_source"`
}

// GetDocument retrieves a document by ID. Returns nil when it does not exist.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
