package gearp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
)

// ParamAFMDropoutRate context hyperparameter sets the default dropout rate
// applied to the AFM output during training. The default is 0.0 (no dropout).
const ParamAFMDropoutRate = "afm_dropout_rate"

// AFMConfig is returned by AttentionalFM to configure the attentional
// factorization machine. Call Done or DoneWithWeights when finished.
type AFMConfig struct {
	ctx          *context.Context
	indices      *Node
	vocabSize    int
	embeddingDim int
	attentionDim int
	dropoutRate  float64
}

// AttentionalFM models the pairwise interactions of discrete attribute
// fields, weighted by a learned attention distribution over the pairs.
//
// indices must be an integer tensor shaped `[batch, numFields]` with values
// in `[0, vocabSize)`; index 0 is reserved for absent ids and embeds to the
// zero vector. Each field is embedded through a shared zero-padded table of
// shape `[vocabSize, embeddingDim]`, all numFields*(numFields-1)/2 pairwise
// element-wise products are scored by a small attention network, and the
// softmax-weighted sum of the products is the AFM output.
//
// First-order (linear) feature contributions are not modeled.
//
// It returns a configuration object. Settings can be adjusted and once done
// call Done (or DoneWithWeights to also retrieve the attention weights):
//
//	afm, weights := gearp.AttentionalFM(ctx.In("afm"), indices, vocabSize, 16).
//		AttentionDim(8).
//		Dropout(0.2).
//		DoneWithWeights()
func AttentionalFM(ctx *context.Context, indices *Node, vocabSize, embeddingDim int) *AFMConfig {
	return &AFMConfig{
		ctx:          ctx,
		indices:      indices,
		vocabSize:    vocabSize,
		embeddingDim: embeddingDim,
		attentionDim: embeddingDim,
		dropoutRate:  context.GetParamOr(ctx, ParamAFMDropoutRate, 0.0),
	}
}

// AttentionDim sets the hidden dimension of the attention network scoring the
// pairwise interactions. It defaults to the embedding dimension.
func (c *AFMConfig) AttentionDim(dim int) *AFMConfig {
	c.attentionDim = dim
	return c
}

// Dropout sets the dropout rate applied to the AFM output, active only
// during training. A rate <= 0 disables it. It defaults to
// [ParamAFMDropoutRate] from the context.
func (c *AFMConfig) Dropout(rate float64) *AFMConfig {
	c.dropoutRate = rate
	return c
}

// Done builds the AFM and returns its output, shaped
// `[batch, embeddingDim]`.
func (c *AFMConfig) Done() *Node {
	output, _ := c.DoneWithWeights()
	return output
}

// DoneWithWeights builds the AFM and returns its output, shaped
// `[batch, embeddingDim]`, along with the attention distribution over the
// field pairs, shaped `[batch, numFields*(numFields-1)/2]`. Each row of the
// distribution sums to 1.
func (c *AFMConfig) DoneWithWeights() (output, weights *Node) {
	ctx, indices := c.ctx, c.indices
	g := indices.Graph()
	if !indices.DType().IsInt() {
		Panicf("AttentionalFM requires integer field indices, got %s", indices.Shape())
	}
	indices.AssertRank(2)
	numFields := indices.Shape().Dimensions[1]
	if numFields < 2 {
		Panicf("AttentionalFM requires at least 2 fields to form pairwise interactions, got %d", numFields)
	}
	if c.attentionDim < 1 {
		Panicf("AttentionalFM requires attentionDim >= 1, got %d", c.attentionDim)
	}

	table := EmbeddingTable(ctx, g, c.vocabSize, c.embeddingDim, true)
	embedded := Gather(table, InsertAxes(indices, -1)) // [batch, numFields, embeddingDim]

	fields := make([]*Node, numFields)
	for i := range fields {
		fields[i] = Squeeze(Slice(embedded, AxisRange(), AxisElem(i), AxisRange()), 1)
	}
	var pairProducts []*Node
	for i := 0; i < numFields; i++ {
		for j := i + 1; j < numFields; j++ {
			pairProducts = append(pairProducts, Mul(fields[i], fields[j]))
		}
	}
	products := Stack(pairProducts, 1) // [batch, numPairs, embeddingDim]

	dtype := products.DType()
	attnCtx := ctx.In("attention")
	attnWeights := attnCtx.VariableWithShape("weights",
		shapes.Make(dtype, c.embeddingDim, c.attentionDim)).ValueGraph(g)
	attnBias := attnCtx.VariableWithShape("biases",
		shapes.Make(dtype, c.attentionDim)).ValueGraph(g)
	attnProjection := attnCtx.VariableWithShape("projection",
		shapes.Make(dtype, c.attentionDim)).ValueGraph(g)

	scores := Einsum("bpd,dh->bph", products, attnWeights)
	scores = activations.Relu(Add(scores, InsertAxes(attnBias, 0, 0)))
	logits := ReduceSum(Mul(scores, InsertAxes(attnProjection, 0, 0)), -1) // [batch, numPairs]

	// Normalized across the pairs, so each sample's weights sum to 1.
	weights = Softmax(logits, -1)

	output = ReduceSum(Mul(InsertAxes(weights, -1), products), 1) // [batch, embeddingDim]
	output = layers.DropoutStatic(ctx.In("dropout"), output, c.dropoutRate)
	return output, weights
}
