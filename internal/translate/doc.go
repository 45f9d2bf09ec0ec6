// Package translate implements the translating stage. Only the segments the
// user's filters selected are sent out; translated text is merged back into
// the transcript segment by segment.
package translate
