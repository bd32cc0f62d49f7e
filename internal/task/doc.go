// Package task orchestrates the daily digest pipeline: enrolling the
// day's ranked stories, draining enrichment work in bounded resumable
// batches, aggregating the completed articles, and publishing the
// result. Invocations never coordinate in memory; all shared state
// lives in the stores, so any invocation can crash and the next one
// resumes from durable state.
package task
