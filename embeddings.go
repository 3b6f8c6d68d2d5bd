package gearp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// EmbeddingTable returns the `[vocabSize, dim]` embedding matrix for the
// current scope, creating the variable on the first call and re-acquiring it
// on subsequent calls. The variable is Glorot-uniform initialized.
//
// If zeroPad is true, row 0 is replaced by the zero vector in-graph, so index
// 0 always resolves to the null embedding. The replacement happens on every
// call, it does not depend on the variable's stored value.
func EmbeddingTable(ctx *context.Context, g *Graph, vocabSize, dim int, zeroPad bool) *Node {
	if vocabSize < 1 || dim < 1 {
		Panicf("EmbeddingTable requires vocabSize >= 1 and dim >= 1, got vocabSize=%d, dim=%d", vocabSize, dim)
	}
	embCtx := ctx.Checked(false).WithInitializer(initializers.GlorotUniformFn(ctx))
	table := embCtx.VariableWithShape("embedding_matrix",
		shapes.Make(dtypes.Float32, vocabSize, dim)).ValueGraph(g)
	if zeroPad {
		zeroRow := Zeros(g, shapes.Make(table.DType(), 1, dim))
		table = Concatenate([]*Node{zeroRow, Slice(table, AxisRangeToEnd(1), AxisRange())}, 0)
	}
	return table
}
