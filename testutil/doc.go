// Package testutil provides fixtures shared by the swarmpulse package tests:
// the control-plane envelope schema, envelope JSON builders, an httptest
// schema endpoint with ETag support, and an in-memory publisher that stands in
// for a NATS connection.
//
// It depends only on the standard library so any package, including schema,
// can use it from its own tests.
package testutil
