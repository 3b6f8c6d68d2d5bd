package gearp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// CentroidMatrix returns the `[numCentroids, dim]` centroid variable of the
// current scope, creating it on the first call and re-acquiring it on
// subsequent calls. Centroids are the learned prototype vectors (interests
// for users, categories for items) that CentroidPooling soft-assigns to, and
// the matrix CentroidCorrelation regularizes.
func CentroidMatrix(ctx *context.Context, g *Graph, numCentroids, dim int) *Node {
	if numCentroids < 1 || dim < 1 {
		Panicf("CentroidMatrix requires numCentroids >= 1 and dim >= 1, got numCentroids=%d, dim=%d",
			numCentroids, dim)
	}
	return ctx.Checked(false).VariableWithShape("centroids",
		shapes.Make(dtypes.Float32, numCentroids, dim)).ValueGraph(g)
}

// CentroidPooling soft-assigns each input row (shaped `[batch, dim]`) to a
// learned set of centroids: the assignment distribution is the softmax of the
// input/centroid similarities scaled by 1/temperature, and the pooled output
// is the assignment-weighted average of the centroids.
//
// A lower temperature sharpens the assignment toward the nearest centroid; a
// very high temperature approaches uniform averaging. If activation is not
// [activations.TypeNone], it is applied to the raw similarities before
// scaling.
//
// It returns the pooled representation (shaped `[batch, dim]`) and the
// assignment distribution (shaped `[batch, numCentroids]`, rows summing
// to 1).
func CentroidPooling(ctx *context.Context, input *Node, numCentroids int, temperature float64,
	activation activations.Type) (pooled, assignments *Node) {
	if temperature <= 0 {
		Panicf("CentroidPooling requires temperature > 0, got %g", temperature)
	}
	input.AssertRank(2)
	g := input.Graph()
	dim := input.Shape().Dimensions[1]

	centroids := CentroidMatrix(ctx, g, numCentroids, dim)
	similarity := Einsum("bd,cd->bc", input, centroids) // [batch, numCentroids]
	similarity = activations.Apply(activation, similarity)
	assignments = Softmax(DivScalar(similarity, temperature), -1)
	pooled = MatMul(assignments, centroids) // [batch, dim]
	return pooled, assignments
}

// CentroidCorrelation computes the pairwise squared cosine similarity between
// centroid rows: `(M·Mᵀ)²` divided element-wise by the outer product of the
// squared row norms. The result is a symmetric `[c, c]` matrix with ones on
// the diagonal, typically summed into the loss to penalize redundant
// centroids.
func CentroidCorrelation(centroids *Node) *Node {
	centroids.AssertRank(2)
	gram := Einsum("cd,ed->ce", centroids, centroids)
	numerator := Square(gram)
	squaredNorms := ReduceAndKeep(Square(centroids), ReduceSum, -1) // [c, 1]
	denominator := Einsum("ca,ea->ce", squaredNorms, squaredNorms)
	return Div(numerator, denominator)
}
