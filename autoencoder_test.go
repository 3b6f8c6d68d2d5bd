package gearp

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoencoderShapes(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	// Odd, non-mirroring widths: the reconstruction must still match the
	// input width, or the loss below would fail to build.
	for _, layerDims := range [][]int{{3}, {5, 3}, {11, 7, 2}} {
		ctx := context.New()
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) []*Node {
			input := IotaFull(g, shapes.Make(dtypes.Float32, 2, 7))
			hidden, loss := Autoencoder(ctx, input, layerDims)
			return []*Node{hidden, loss}
		})
		outputs := exec.Call()
		hidden, loss := outputs[0], outputs[1]
		assert.Equal(t, []int{2, layerDims[len(layerDims)-1]}, hidden.Shape().Dimensions)
		assert.True(t, loss.Shape().IsScalar(), "reconstruction loss must be a scalar")
	}
}

func TestAutoencoderReconstructionLoss(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	// With all parameters initialized to zero the reconstruction is exactly
	// zero, so the loss is half the squared sum of the input.
	buildExec := func(ctx *context.Context, input [][]float32) *context.Exec {
		return context.NewExec(backend, ctx.WithInitializer(initializers.Zero),
			func(ctx *context.Context, g *Graph) []*Node {
				hidden, loss := Autoencoder(ctx, Const(g, input), []int{4, 2})
				return []*Node{hidden, loss}
			})
	}

	ctx := context.New()
	outputs := buildExec(ctx, [][]float32{{1, 2}, {3, 0}}).Call()
	loss := tensors.ToScalar[float32](outputs[1])
	require.InDelta(t, 7.0, loss, 1e-6, "loss must be 0.5*sum(x^2) when the reconstruction is zero")

	ctx = context.New()
	outputs = buildExec(ctx, [][]float32{{0, 0}, {0, 0}}).Call()
	loss = tensors.ToScalar[float32](outputs[1])
	require.Zero(t, loss, "loss must be zero when the reconstruction equals the input")
}

func TestAutoencoderRequiresLayers(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	require.Panics(t, func() {
		ctx := context.New()
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
			_, loss := Autoencoder(ctx, IotaFull(g, shapes.Make(dtypes.Float32, 2, 3)), nil)
			return loss
		})
		exec.Call()
	})
}
