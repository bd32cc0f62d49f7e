// Package gemini implements the task.Enricher interface using Google's
// Gemini API. Each enrichment method sends one batched request covering
// the whole article batch and expects a JSON array back, one element per
// input, so a batch of n articles costs three model calls rather than
// 3n. Indices the model leaves out come back as the empty string, the
// pipeline's "no result produced" sentinel.
package gemini
