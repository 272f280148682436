package milvus

import (
	"context"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// mockMilvus implements the handful of SDK methods the package calls.
type mockMilvus struct {
	client.Client

	mu          sync.Mutex
	healthy     bool
	healthErr   error
	collections map[string]bool
	created     []*entity.Schema
	indexed     []string
	loaded      []string
	dropped     []string
	deletes     []string
	upserts     [][]entity.Column
	searchExpr  string
	searchTopK  int
	searchRes   []client.SearchResult
	searchErr   error
	upsertErr   error
	closed      bool
}

func newMockMilvus() *mockMilvus {
	return &mockMilvus{healthy: true, collections: map[string]bool{}}
}

func (m *mockMilvus) CheckHealth(ctx context.Context) (*entity.MilvusState, error) {
	if m.healthErr != nil {
		return nil, m.healthErr
	}
	return &entity.MilvusState{IsHealthy: m.healthy}, nil
}

func (m *mockMilvus) Close() error {
	m.closed = true
	return nil
}

func (m *mockMilvus) HasCollection(ctx context.Context, name string) (bool, error) {
	return m.collections[name], nil
}

func (m *mockMilvus) CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error {
	m.created = append(m.created, schema)
	m.collections[schema.CollectionName] = true
	return nil
}

func (m *mockMilvus) DropCollection(ctx context.Context, name string, opts ...client.DropCollectionOption) error {
	m.dropped = append(m.dropped, name)
	delete(m.collections, name)
	return nil
}

func (m *mockMilvus) CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	m.indexed = append(m.indexed, fieldName)
	return nil
}

func (m *mockMilvus) LoadCollection(ctx context.Context, name string, async bool, opts ...client.LoadCollectionOption) error {
	m.loaded = append(m.loaded, name)
	return nil
}

func (m *mockMilvus) Delete(ctx context.Context, collName string, partitionName string, expr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, expr)
	return nil
}

func (m *mockMilvus) Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, columns)
	return columns[0], nil
}

func (m *mockMilvus) Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
	vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam,
	opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	m.searchExpr = expr
	m.searchTopK = topK
	return m.searchRes, m.searchErr
}

func newTestClient(mc *mockMilvus) *Client {
	c := &Client{milvusClient: mc, cancel: func() {}}
	c.logger = nopLogger()
	c.healthy.Store(true)
	return c
}

//Personal.AI order the ending
