// Demo assembles every gearp building block into a single forward pass over a
// synthetic mini-batch: an autoencoder over structural context, an attentional
// FM over attribute fields, a multi-head GAT over a random friendship graph,
// and centroid pooling (with its correlation penalty) of the GAT output.
//
// It builds the graph, runs it once, and reports the shapes and auxiliary
// signals. No training happens here.
package main

import (
	"flag"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/kiminh/gearp"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagBatchSize    = flag.Int("batch", 8, "Mini-batch size.")
	flagNumNodes     = flag.Int("nodes", 32, "Number of nodes in the synthetic friendship graph.")
	flagStructDim    = flag.Int("struct_dim", 24, "Width of the structural context features.")
	flagNumFields    = flag.Int("fields", 4, "Number of discrete attribute fields per sample.")
	flagVocabSize    = flag.Int("vocab", 50, "Attribute vocabulary size (index 0 reserved for padding).")
	flagEmbeddingDim = flag.Int("emb_dim", 16, "Embedding dimension shared by AFM and GAT.")
	flagHiddenDim    = flag.Int("hidden_dim", 16, "Hidden representation dimension.")
	flagNumHeads     = flag.Int("heads", 2, "Number of GAT attention heads.")
	flagNumCentroids = flag.Int("centroids", 6, "Number of interest centroids.")
	flagTemperature  = flag.Float64("temperature", 0.5, "Softmax temperature for centroid pooling.")
	flagOutput       = flag.String("output", "", "Optional file to save the pooled interest representations to.")
)

func modelGraph(ctx *context.Context, inputs []*Node) []*Node {
	structural, fields, adjacency, queries := inputs[0], inputs[1], inputs[2], inputs[3]
	g := structural.Graph()
	ctx = ctx.WithInitializer(initializers.GlorotUniformFn(ctx))

	hidden, reconLoss := gearp.Autoencoder(ctx.In("structural"), structural,
		[]int{2 * *flagHiddenDim, *flagHiddenDim})

	afm, afmWeights := gearp.AttentionalFM(ctx.In("attributes"), fields,
		*flagVocabSize, *flagEmbeddingDim).DoneWithWeights()

	nodeTable := gearp.EmbeddingTable(ctx.In("friendship"), g, *flagNumNodes, *flagEmbeddingDim, true)
	gatOutput, gatCoefficients := gearp.GraphAttention(ctx.In("friendship"), nodeTable,
		adjacency, queries, *flagHiddenDim).
		NumHeads(*flagNumHeads).
		DoneWithCoefficients()

	pooled, assignments := gearp.CentroidPooling(ctx.In("interests"), gatOutput,
		*flagNumCentroids, *flagTemperature, activations.TypeNone)
	correlation := gearp.CentroidCorrelation(
		gearp.CentroidMatrix(ctx.In("interests"), g, *flagNumCentroids, *flagHiddenDim))
	correlationPenalty := ReduceAllSum(correlation)

	// The encompassing model would feed this joint representation to its
	// prediction head; here it is just reported.
	joint := Concatenate([]*Node{hidden, afm, pooled}, -1)
	return []*Node{reconLoss, afmWeights, gatCoefficients[0], joint, assignments, correlationPenalty}
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	backend := backends.MustNew()
	klog.Infof("Backend: %s", backend.Description())

	batch, nodes := *flagBatchSize, *flagNumNodes
	structural := make([]float32, batch**flagStructDim)
	for i := range structural {
		structural[i] = rand.Float32()
	}
	fields := make([]int32, batch**flagNumFields)
	for i := range fields {
		fields[i] = int32(1 + rand.Intn(*flagVocabSize-1))
	}
	adjacency := make([]int32, batch*nodes)
	for i := range adjacency {
		if rand.Float64() < 0.25 {
			adjacency[i] = 1
		}
	}
	queries := make([]int32, batch)
	for b := range queries {
		queries[b] = int32(rand.Intn(nodes))
		adjacency[b*nodes+int(queries[b])] = 1 // every node is its own neighbor
	}

	inputs := []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(structural, batch, *flagStructDim),
		tensors.FromFlatDataAndDimensions(fields, batch, *flagNumFields),
		tensors.FromFlatDataAndDimensions(adjacency, batch, nodes),
		tensors.FromFlatDataAndDimensions(queries, batch),
	}

	ctx := context.New()
	exec := context.NewExec(backend, ctx, modelGraph)
	outputs := exec.Call(inputs)
	reconLoss, afmWeights, gatCoefficients := outputs[0], outputs[1], outputs[2]
	joint, assignments, correlationPenalty := outputs[3], outputs[4], outputs[5]

	klog.Infof("model holds %d variables (%s)",
		ctx.NumVariables(), humanize.Bytes(uint64(ctx.Memory())))
	klog.Infof("reconstruction loss: %.4f", tensors.ToScalar[float32](reconLoss))
	klog.Infof("AFM pair-attention: %s", afmWeights.Shape())
	klog.Infof("GAT head 0 attention: %s", gatCoefficients.Shape())
	klog.Infof("joint representation: %s, assignments: %s", joint.Shape(), assignments.Shape())
	klog.Infof("centroid correlation penalty: %.4f", tensors.ToScalar[float32](correlationPenalty))

	if *flagOutput != "" {
		must.M(joint.Save(*flagOutput))
		klog.Infof("saved joint representations to %s", *flagOutput)
	}
}
