package gearp

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// Autoencoder compresses input (shaped `[batch, inputDim]`) through dense
// ReLU layers of the given widths and reconstructs it through the mirrored
// stack, with a final linear layer restoring the original width.
//
// layerDims lists the encoder widths in order, the last entry being the width
// of the hidden representation. The decoder reuses the widths in reverse,
// excluding the innermost one.
//
// It returns the hidden representation (shaped `[batch, layerDims[last]]`)
// and the reconstruction loss, half the sum of squared differences between
// input and reconstruction (a scalar).
func Autoencoder(ctx *context.Context, input *Node, layerDims []int) (hidden, reconLoss *Node) {
	if len(layerDims) == 0 {
		Panicf("Autoencoder requires at least one layer width, got none")
	}
	input.AssertRank(2)
	restoreDim := input.Shape().Dimensions[1]

	features := input
	for i, width := range layerDims {
		features = activations.Relu(
			layers.DenseWithBias(ctx.Inf("encoder_%d", i), features, width))
	}
	hidden = features

	// Decoder mirrors the encoder widths, skipping the innermost.
	for i := len(layerDims) - 2; i >= 0; i-- {
		features = activations.Relu(
			layers.DenseWithBias(ctx.Inf("decoder_%d", i), features, layerDims[i]))
	}
	reconstruction := layers.DenseWithBias(ctx.In("reconstruction"), features, restoreDim)

	reconLoss = MulScalar(ReduceAllSum(Square(Sub(input, reconstruction))), 0.5)
	return hidden, reconLoss
}
