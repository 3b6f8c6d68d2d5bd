// Package gearp implements the neural building blocks of a graph-enhanced
// attentive recommendation model: an autoencoder for structural context, an
// attentional factorization machine (AFM) over discrete attribute fields, a
// centroid (interest) pooling layer with its correlation regularizer, a
// single-layer multi-head graph attention network (GAT) and a shared
// zero-padded embedding table.
//
// Every block is a graph-building function on top of GoMLX: it takes a
// [context.Context] (which owns the learnable variables, keyed by scope and
// name) and input [graph.Node]s, and returns output nodes plus auxiliary
// nodes (reconstruction loss, attention distributions). Blocks hold no state
// of their own; calling a block twice in the same scope re-acquires the same
// variables instead of re-creating them. Training, checkpointing and data
// feeding are left to the caller, typically through the gomlx train package.
//
// Index 0 of every embedding table built with zero-padding enabled resolves
// to the null vector, reserved for absent or unknown ids.
package gearp
