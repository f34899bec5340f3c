// Package observability provides structured logging and Prometheus metrics
// for the question answering service.
//
// Loggers are plain *zap.Logger values built by NewLogger and injected into
// every component. Metrics live on a private registry so tests can create
// as many instances as they like.
package observability
