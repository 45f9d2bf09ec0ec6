// Package selection reduces a transcript to the subset of segments the user
// chose for translation and cloning. Filters match by speaker or by fully
// contained time range; their matches are unioned, deduplicated, and returned
// in ascending start-time order.
package selection
