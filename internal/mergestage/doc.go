// Package mergestage implements the merging stage: cloned chunks are
// reassembled in their planned time order, never completion order, and the
// result is muxed back into the source media.
package mergestage
