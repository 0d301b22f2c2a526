// Package es wraps the Elasticsearch calls used by the vector index backend.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"codehelp-go/internal/config"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
)

// Client is a thin wrapper over the official client.
type Client struct {
	es *elasticsearch.Client
}

// Hit is one knn search result.
type Hit struct {
	Score  float64
	Source model.EsDocument
}

// NewClient connects to the cluster in cfg.
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: client}, nil
}

// NewClientFrom wraps an already configured client.
func NewClientFrom(es *elasticsearch.Client) *Client {
	return &Client{es: es}
}

// IndexExists reports whether indexName exists.
func (c *Client) IndexExists(ctx context.Context, indexName string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status checking index %s: %d", indexName, res.StatusCode)
	}
}

// CreateIndex creates indexName with a cosine dense_vector field of dims dimensions.
func (c *Client) CreateIndex(ctx context.Context, indexName string, dims int) error {
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"doc_id": { "type": "keyword" },
				"seq": { "type": "long" },
				"content": { "type": "text" },
				"source": { "type": "keyword" },
				"task_id": { "type": "keyword" },
				"canonical_solution": { "type": "text", "index": false },
				"intent": { "type": "keyword" },
				"response": { "type": "text", "index": false },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err := c.es.Indices.Create(
		indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("[ES] failed to create index '%s': %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] elasticsearch rejected index '%s': %s", indexName, res.String())
		return errors.New("elasticsearch returned an error while creating index")
	}

	log.Infof("[ES] index '%s' created", indexName)
	return nil
}

// DeleteIndex removes indexName; a missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, indexName string) error {
	res, err := c.es.Indices.Delete([]string{indexName}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete index %s: %s", indexName, res.String())
	}
	return nil
}

// IndexDocument indexes a single document and refreshes so it is searchable immediately.
func (c *Client) IndexDocument(ctx context.Context, indexName string, doc model.EsDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.DocID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[ES] failed to index document: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// BulkIndex indexes docs in one _bulk request.
func (c *Client) BulkIndex(ctx context.Context, indexName string, docs []model.EsDocument) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]map[string]string{"index": {"_index": indexName, "_id": doc.DocID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	req := esapi.BulkRequest{Body: &buf, Refresh: "true"}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index failed: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk index reported item errors")
	}
	return nil
}

// Count returns the number of documents in indexName.
func (c *Client) Count(ctx context.Context, indexName string) (int64, error) {
	res, err := c.es.Count(c.es.Count.WithIndex(indexName), c.es.Count.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("count failed: %s", res.String())
	}
	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, err
	}
	return countResp.Count, nil
}

// maxNumCandidates is the upper bound Elasticsearch accepts for knn num_candidates.
const maxNumCandidates = 10000

// KnnSearch runs an approximate knn query against the vector field.
// Scores are converted from Elasticsearch's (1+cos)/2 back to cosine similarity.
func (c *Client) KnnSearch(ctx context.Context, indexName string, vector []float32, k int) ([]Hit, error) {
	numCandidates := min(max(k*10, 100), maxNumCandidates)
	k = min(k, numCandidates)
	query := map[string]interface{}{
		"size": k,
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indexName),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("knn search failed: %s", res.String())
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Score  float64          `json:"_score"`
				Source model.EsDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(searchResp.Hits.Hits))
	for _, h := range searchResp.Hits.Hits {
		hits = append(hits, Hit{Score: 2*h.Score - 1, Source: h.Source})
	}
	return hits, nil
}
