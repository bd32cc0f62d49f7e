// Package postgres provides PostgreSQL implementations of the store
// interfaces. All SQL lives here; the rest of the application only sees
// the store package's contracts. Any error escaping this layer is fatal
// to the calling invocation: the durable state lets the next invocation
// resume correctly, so failures are never masked or retried here.
package postgres
