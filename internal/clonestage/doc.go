// Package clonestage implements the cloning stage. Entry is gated on a
// finalized selection, a computed chunk plan, and a confirmed credit debit;
// chunks are then dispatched concurrently with a bounded per-chunk retry,
// and the stage only succeeds once every chunk has completed.
package clonestage
