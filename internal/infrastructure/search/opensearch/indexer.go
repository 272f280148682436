package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/sagerock/ai-law-research/internal/domain/search"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

var (
	ErrIndexCreationFailed = errors.New(errors.ErrCodeExternalService, "index creation failed")
	ErrDocumentIndexFailed = errors.New(errors.ErrCodeExternalService, "document index failed")
)

// BulkItemError describes one rejected bulk item.
type BulkItemError struct {
	DocID  string
	Type   string
	Reason string
}

type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// Indexer maintains the case index.
type Indexer struct {
	transport opensearchapi.Transport
	index     string
	refresh   string
	batchSize int
	logger    logging.Logger
}

// NewIndexer writes to c's index. refresh is passed through to write
// requests ("", "true", "wait_for").
func NewIndexer(c *Client, refresh string, logger logging.Logger) *Indexer {
	return newIndexer(c.Underlying(), c.Index(), refresh, logger)
}

func newIndexer(t opensearchapi.Transport, index, refresh string, logger logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{transport: t, index: index, refresh: refresh, batchSize: 500, logger: logger.Named("opensearch_indexer")}
}

// CaseIndexMapping uses the english analyzer for prose and keywords for
// filters. citation_count feeds the authority boost.
func CaseIndexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":             map[string]any{"type": "keyword"},
				"title":          map[string]any{"type": "text", "analyzer": "english"},
				"court_id":       map[string]any{"type": "keyword"},
				"court_name":     map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
				"jurisdiction":   map[string]any{"type": "keyword"},
				"decision_date":  map[string]any{"type": "date"},
				"citations":      map[string]any{"type": "text", "analyzer": "whitespace"},
				"content":        map[string]any{"type": "text", "analyzer": "english"},
				"citation_count": map[string]any{"type": "integer"},
			},
		},
	}
}

// EnsureIndex creates the index with CaseIndexMapping when it is missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.indexExists(ctx)
	if err != nil || exists {
		return err
	}
	body, err := json.Marshal(CaseIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	resp, err := opensearchapi.IndicesCreateRequest{Index: i.index, Body: bytes.NewReader(body)}.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "create index request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, ErrIndexCreationFailed)
	}
	i.logger.Info("Index created", logging.String("index", i.index))
	return nil
}

func (i *Indexer) indexExists(ctx context.Context) (bool, error) {
	resp, err := opensearchapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.transport)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "index exists request failed")
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, responseError(resp, errors.New(errors.ErrCodeExternalService, "index exists check failed"))
}

// IndexCase writes or replaces doc.
func (i *Indexer) IndexCase(ctx context.Context, doc search.CaseDocument) error {
	if doc.ID == "" {
		return errors.InvalidParam("document id is required")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal document")
	}
	resp, err := opensearchapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		Refresh:    i.refresh,
	}.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "index request failed").WithDetail(doc.ID)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, ErrDocumentIndexFailed)
	}
	return nil
}

// DeleteCase removes a document; a missing document is not an error.
func (i *Indexer) DeleteCase(ctx context.Context, id string) error {
	resp, err := opensearchapi.DeleteRequest{Index: i.index, DocumentID: id, Refresh: i.refresh}.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "delete request failed").WithDetail(id)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return responseError(resp, errors.New(errors.ErrCodeExternalService, "delete document failed"))
	}
	return nil
}

// UpdateCitationCount patches the boost field after edge changes.
func (i *Indexer) UpdateCitationCount(ctx context.Context, id string, count int) error {
	body := fmt.Sprintf(`{"doc":{"citation_count":%d}}`, count)
	resp, err := opensearchapi.UpdateRequest{Index: i.index, DocumentID: id, Body: bytes.NewReader([]byte(body))}.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "update request failed").WithDetail(id)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return responseError(resp, errors.New(errors.ErrCodeExternalService, "update citation count failed"))
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex writes docs in batches. Item failures are reported in the
// result; transport failures abort.
func (i *Indexer) BulkIndex(ctx context.Context, docs []search.CaseDocument) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(docs); start += i.batchSize {
		end := start + i.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		var buf bytes.Buffer
		for _, doc := range docs[start:end] {
			src, err := json.Marshal(doc)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{DocID: doc.ID, Type: "serialization_error", Reason: err.Error()})
				continue
			}
			meta, _ := json.Marshal(map[string]any{"index": map[string]string{"_index": i.index, "_id": doc.ID}})
			buf.Write(meta)
			buf.WriteByte('\n')
			buf.Write(src)
			buf.WriteByte('\n')
		}
		if buf.Len() == 0 {
			continue
		}
		if err := i.sendBulk(ctx, &buf, end-start, result); err != nil {
			return result, err
		}
	}
	if len(docs) > 0 {
		i.logger.Info("Bulk index completed",
			logging.Int("total", len(docs)),
			logging.Int("succeeded", result.Succeeded),
			logging.Int("failed", result.Failed))
	}
	return result, nil
}

func (i *Indexer) sendBulk(ctx context.Context, body io.Reader, n int, result *BulkResult) error {
	resp, err := opensearchapi.BulkRequest{Body: body, Refresh: i.refresh}.Do(ctx, i.transport)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "bulk request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		err := responseError(resp, errors.New(errors.ErrCodeExternalService, "bulk batch failed"))
		result.Failed += n
		result.Errors = append(result.Errors, BulkItemError{DocID: "*", Type: "http_error", Reason: err.Error()})
		return nil
	}
	var br bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	for _, item := range br.Items {
		for _, v := range item {
			if v.Status >= 200 && v.Status < 300 {
				result.Succeeded++
			} else {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{DocID: v.ID, Type: v.Error.Type, Reason: v.Error.Reason})
			}
		}
	}
	return nil
}

func responseError(resp *opensearchapi.Response, base *errors.AppError) error {
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Reason != "" {
		return base.WithDetail(fmt.Sprintf("%s: %s", body.Error.Type, body.Error.Reason))
	}
	return base.WithDetail(fmt.Sprintf("status %d", resp.StatusCode))
}

var _ search.CaseIndexer = (*Indexer)(nil)

//Personal.AI order the ending
