package gearp

import (
	"fmt"
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestEmbeddingTableZeroPadding(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for _, tc := range []struct{ vocabSize, dim int }{
		{5, 3}, {100, 8}, {2, 1},
	} {
		t.Run(fmt.Sprintf("vocab=%d_dim=%d", tc.vocabSize, tc.dim), func(t *testing.T) {
			ctx := context.New()
			exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
				return EmbeddingTable(ctx, g, tc.vocabSize, tc.dim, true)
			})
			table := exec.Call()[0]
			require.Equal(t, []int{tc.vocabSize, tc.dim}, table.Shape().Dimensions)
			flat := tensors.CopyFlatData[float32](table)
			for col, value := range flat[:tc.dim] {
				assert.Zerof(t, value, "row 0 column %d must be the zero (padding) embedding", col)
			}
			var restNonZero bool
			for _, value := range flat[tc.dim:] {
				if value != 0 {
					restNonZero = true
					break
				}
			}
			assert.True(t, restNonZero, "rows past the padding row should be randomly initialized")
		})
	}
}

func TestEmbeddingTableWithoutZeroPadding(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		return EmbeddingTable(ctx, g, 4, 2, false)
	})
	table := exec.Call()[0]
	require.Equal(t, []int{4, 2}, table.Shape().Dimensions)
}

func TestEmbeddingTableReuse(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		first := EmbeddingTable(ctx.In("shared"), g, 7, 4, true)
		second := EmbeddingTable(ctx.In("shared"), g, 7, 4, true)
		return Sub(first, second)
	})
	diff := exec.Call()[0]
	require.Equal(t, 1, ctx.NumVariables(), "re-acquiring the table must not create a second variable")
	for _, value := range tensors.CopyFlatData[float32](diff) {
		assert.Zero(t, value, "both acquisitions must resolve to the same table")
	}
}
