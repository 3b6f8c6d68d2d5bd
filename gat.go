package gearp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
)

const (
	// ParamGATNumHeads context hyperparameter sets the default number of
	// attention heads. The default is 1.
	ParamGATNumHeads = "gat_num_heads"

	// ParamGATFeatureDropoutRate context hyperparameter sets the default
	// dropout rate applied to node features, before and after the per-head
	// linear projection. The default is 0.0.
	ParamGATFeatureDropoutRate = "gat_feature_dropout_rate"

	// ParamGATCoefficientDropoutRate context hyperparameter sets the default
	// dropout rate applied to the attention coefficients. The default is 0.0.
	ParamGATCoefficientDropoutRate = "gat_coefficient_dropout_rate"
)

// maskBiasScale converts a 0/1 adjacency entry into an additive logit bias:
// edges keep their logit, non-edges are pushed to -1e9 so their post-softmax
// weight vanishes while the graph stays differentiable.
const maskBiasScale = 1e9

// GATConfig is returned by GraphAttention to configure the graph attention
// layer. Call Done or DoneWithCoefficients when finished.
type GATConfig struct {
	ctx                    *context.Context
	embeddings             *Node
	adjacency              *Node
	indices                *Node
	outputDim              int
	numHeads               int
	featureDropoutRate     float64
	coefficientDropoutRate float64
}

// GraphAttention aggregates neighbor embeddings into a representation of each
// query node through a single multi-head graph attention layer.
//
// embeddings is the full node embedding table, shaped `[numNodes, dim]`.
// adjacency is the batch 0/1 adjacency, shaped `[batch, numNodes]`, marking
// the neighbors of each query node. indices are the integer query node ids,
// shaped `[batch]` or `[batch, 1]`. Each head attends over all nodes with
// non-edges masked out, and the concatenated head outputs are linearly
// projected back to outputDim. Residual connections are not used.
//
// It returns a configuration object. Settings can be adjusted and once done
// call Done (or DoneWithCoefficients to also retrieve the per-head attention
// distributions):
//
//	state, coefs := gearp.GraphAttention(ctx.In("user_gat"), table, adj, ids, 32).
//		NumHeads(4).
//		FeatureDropout(0.2).
//		DoneWithCoefficients()
func GraphAttention(ctx *context.Context, embeddings, adjacency, indices *Node, outputDim int) *GATConfig {
	return &GATConfig{
		ctx:                    ctx,
		embeddings:             embeddings,
		adjacency:              adjacency,
		indices:                indices,
		outputDim:              outputDim,
		numHeads:               context.GetParamOr(ctx, ParamGATNumHeads, 1),
		featureDropoutRate:     context.GetParamOr(ctx, ParamGATFeatureDropoutRate, 0.0),
		coefficientDropoutRate: context.GetParamOr(ctx, ParamGATCoefficientDropoutRate, 0.0),
	}
}

// NumHeads sets the number of independently parameterized attention heads.
// It defaults to [ParamGATNumHeads] from the context, or 1.
func (c *GATConfig) NumHeads(n int) *GATConfig {
	c.numHeads = n
	return c
}

// FeatureDropout sets the dropout rate applied to the node features, before
// and after the per-head projection, active only during training. It
// defaults to [ParamGATFeatureDropoutRate] from the context.
func (c *GATConfig) FeatureDropout(rate float64) *GATConfig {
	c.featureDropoutRate = rate
	return c
}

// CoefficientDropout sets the dropout rate applied to the attention
// coefficients, active only during training. It defaults to
// [ParamGATCoefficientDropoutRate] from the context.
func (c *GATConfig) CoefficientDropout(rate float64) *GATConfig {
	c.coefficientDropoutRate = rate
	return c
}

// Done builds the layer and returns the aggregated node representations,
// shaped `[batch, outputDim]`.
func (c *GATConfig) Done() *Node {
	output, _ := c.DoneWithCoefficients()
	return output
}

// DoneWithCoefficients builds the layer and returns the aggregated node
// representations, shaped `[batch, outputDim]`, along with each head's
// attention distribution over the nodes, shaped `[batch, numNodes]`. Each
// distribution row sums to 1, with the weight of non-adjacent nodes
// vanishing.
func (c *GATConfig) DoneWithCoefficients() (output *Node, coefficients []*Node) {
	ctx := c.ctx
	if c.numHeads < 1 {
		Panicf("GraphAttention requires at least 1 head, got %d", c.numHeads)
	}
	if c.outputDim < 1 {
		Panicf("GraphAttention requires outputDim >= 1, got %d", c.outputDim)
	}
	c.embeddings.AssertRank(2)
	c.adjacency.AssertRank(2)
	indices := c.indices
	if !indices.DType().IsInt() {
		Panicf("GraphAttention requires integer query node indices, got %s", indices.Shape())
	}
	if indices.Rank() == 1 {
		indices = InsertAxes(indices, -1)
	}
	indices.AssertRank(2)

	dtype := c.embeddings.DType()
	biasMask := MulScalar(OneMinus(ConvertDType(c.adjacency, dtype)), -maskBiasScale)

	headOutputs := make([]*Node, 0, c.numHeads)
	coefficients = make([]*Node, 0, c.numHeads)
	for head := range c.numHeads {
		headOutput, headCoefficients := graphAttentionHead(
			ctx.Inf("head_%d", head), c.embeddings, biasMask, indices,
			c.outputDim, c.featureDropoutRate, c.coefficientDropoutRate)
		headOutputs = append(headOutputs, headOutput)
		coefficients = append(coefficients, headCoefficients)
	}

	concatenated := Concatenate(headOutputs, -1) // [batch, outputDim*numHeads]
	output = layers.Dense(ctx.In("output_projection"), concatenated, false, c.outputDim)
	return output, coefficients
}

// graphAttentionHead computes one attention head: project all node
// embeddings, score each (query, node) pair with two scalar projections, mask
// non-edges and aggregate the projected nodes by the resulting attention.
func graphAttentionHead(ctx *context.Context, embeddings, biasMask, indices *Node,
	outputDim int, featureDropoutRate, coefficientDropoutRate float64) (output, coefficients *Node) {
	g := embeddings.Graph()

	features := layers.DropoutStatic(ctx.In("feature_dropout"), embeddings, featureDropoutRate)
	projected := layers.Dense(ctx.In("transform"), features, false, outputDim) // [numNodes, outputDim]
	queryFeatures := Gather(projected, indices)                                // [batch, outputDim]

	queryScores := layers.DenseWithBias(ctx.In("query_score"), queryFeatures, 1) // [batch, 1]
	nodeScores := layers.DenseWithBias(ctx.In("node_score"), projected, 1)       // [numNodes, 1]
	logits := Add(queryScores, TransposeAllDims(nodeScores, 1, 0))               // [batch, numNodes]

	coefficients = Softmax(Add(activations.LeakyReluWithAlpha(logits, 0.2), biasMask), -1)

	coefficients = layers.DropoutStatic(ctx.In("coefficient_dropout"), coefficients, coefficientDropoutRate)
	projected = layers.DropoutStatic(ctx.In("value_dropout"), projected, featureDropoutRate)

	pooled := MatMul(coefficients, projected) // [batch, outputDim]
	bias := ctx.WithInitializer(initializers.Zero).VariableWithShape("biases",
		shapes.Make(pooled.DType(), outputDim)).ValueGraph(g)
	output = activations.Relu(Add(pooled, InsertAxes(bias, 0)))
	return output, coefficients
}
