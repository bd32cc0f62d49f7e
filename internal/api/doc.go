// Package api implements the HTTP handlers for the digest API. Handlers
// stay thin: they parse and validate the request, call the digest
// service, and map its errors to HTTP status codes. All pipeline
// semantics live behind the DigestService interface.
package api
