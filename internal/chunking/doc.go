// Package chunking partitions selected transcript segments into voice
// cloning work units. The cloning service accepts a bounded number of
// distinct voices per call, so segments are grouped greedily in time order
// without ever reordering them.
package chunking
