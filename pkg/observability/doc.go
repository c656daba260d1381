/*
Package observability binds the engine lifecycle hooks to Prometheus metrics
and structured logs.
*/
package observability
