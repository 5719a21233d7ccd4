package hnsw

import (
	"testing"

	"github.com/hupe1980/fusego/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()

	seed := int64(77)
	h, err := New(8, func(o *Options) {
		o.DistanceType = metric.DistanceTypeEuclidean
		o.RandomSeed = &seed
	})
	require.NoError(t, err)

	for _, v := range randomVectors(t, 300, 8, 21) {
		_, err := h.Insert(v)
		require.NoError(t, err)
	}

	// A hole in the id space exercises free-list reconstruction.
	require.True(t, h.Delete(42))

	return h
}

func TestSnapshotRoundTrip(t *testing.T) {
	h := buildTestIndex(t)

	restored, err := FromSnapshot(h.Export())
	require.NoError(t, err)

	assert.Equal(t, h.Len(), restored.Len())
	assert.Equal(t, h.Dimension(), restored.Dimension())

	// Identical search behavior on the restored index.
	for _, q := range randomVectors(t, 10, 8, 22) {
		want, err := h.Search(q, 10)
		require.NoError(t, err)

		got, err := restored.Search(q, 10)
		require.NoError(t, err)

		assert.Equal(t, want, got)
	}
}

func TestSnapshotExportIsDeepCopy(t *testing.T) {
	h := buildTestIndex(t)

	s := h.Export()
	s.Nodes[0].Vector[0] = 9999

	vec, ok := h.VectorByID(s.Nodes[0].ID)
	require.True(t, ok)
	assert.NotEqual(t, float32(9999), vec[0])
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	h := buildTestIndex(t)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"nil snapshot handled separately", nil},
		{"bad dimension", func(s *Snapshot) { s.Config.Dimension = 0 }},
		{"vector dimension mismatch", func(s *Snapshot) { s.Nodes[0].Vector = s.Nodes[0].Vector[:3] }},
		{"id out of range", func(s *Snapshot) { s.Nodes[0].ID = s.NextID + 10 }},
		{"layer count mismatch", func(s *Snapshot) { s.Nodes[0].Level += 2 }},
		{"dangling edge", func(s *Snapshot) { s.Nodes[0].Connections[0] = []uint32{s.NextID + 1} }},
		{"dead entry point", func(s *Snapshot) { s.EntryPoint = 42 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				_, err := FromSnapshot(nil)
				assert.ErrorIs(t, err, ErrInvalidSnapshot)
				return
			}

			s := h.Export()
			tt.mutate(s)

			_, err := FromSnapshot(s)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestFromSnapshotReusesHoles(t *testing.T) {
	h := buildTestIndex(t)

	restored, err := FromSnapshot(h.Export())
	require.NoError(t, err)

	id, err := restored.Insert(make([]float32, 8))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)
}
