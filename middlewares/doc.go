// Package middlewares provides net/http middleware for the transport layer
// in front of minicat applications.
//
// # Request ID
//
// RequestID assigns an ID to each request, reusing X-Request-ID (or
// X-Correlation-ID) when an upstream proxy set one and generating a UUID
// otherwise. The container picks the ID up as the servlet request's ID.
//
//	r.Use(middlewares.RequestID())
//
// Combine with RequestIDExtractor to add request_id to every log record:
//
//	log := logger.New(middlewares.RequestIDExtractor())
//
// # Recover
//
// Recover converts panics escaping the handler chain into a logged
// PanicError and a 500 response:
//
//	r.Use(middlewares.Recover(middlewares.WithRecoverLogger(log)))
//
// # Timeout
//
// Timeout bounds the request context:
//
//	r.Use(middlewares.Timeout(10 * time.Second))
package middlewares
