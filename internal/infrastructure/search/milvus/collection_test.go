package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSchema(t *testing.T) {
	s := ChunkSchema("chunks", 384)
	assert.Equal(t, "chunks", s.CollectionName)
	require.Len(t, s.Fields, 9)

	var pk, vec *entity.Field
	for _, f := range s.Fields {
		if f.PrimaryKey {
			pk = f
		}
		if f.DataType == entity.FieldTypeFloatVector {
			vec = f
		}
	}
	require.NotNil(t, pk)
	assert.Equal(t, fieldChunkID, pk.Name)
	require.NotNil(t, vec)
	assert.Equal(t, "384", vec.TypeParams[entity.TypeParamDim])
}

func TestEnsureCollection_CreatesIndexesAndLoads(t *testing.T) {
	mc := newMockMilvus()
	m := NewCollectionManager(newTestClient(mc), CollectionConfig{Dimension: 8}, nil)

	require.NoError(t, m.EnsureCollection(context.Background()))
	require.Len(t, mc.created, 1)
	assert.Equal(t, DefaultCollection, mc.created[0].CollectionName)
	assert.Equal(t, []string{fieldEmbedding}, mc.indexed)
	assert.Equal(t, []string{DefaultCollection}, mc.loaded)

	// second call only reloads
	require.NoError(t, m.EnsureCollection(context.Background()))
	assert.Len(t, mc.created, 1)
	assert.Len(t, mc.loaded, 2)
}

func TestDropCollection(t *testing.T) {
	mc := newMockMilvus()
	m := NewCollectionManager(newTestClient(mc), CollectionConfig{Name: "c"}, nil)

	require.NoError(t, m.DropCollection(context.Background()))
	assert.Empty(t, mc.dropped)

	mc.collections["c"] = true
	require.NoError(t, m.DropCollection(context.Background()))
	assert.Equal(t, []string{"c"}, mc.dropped)
}

//Personal.AI order the ending
