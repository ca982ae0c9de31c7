// Package gateway defines how HTTP surfaces attach to the swarmpulse API
// server and the settings they share.
//
// A surface implements HTTPHandler and registers its routes under a prefix
// on the server's mux:
//
//	mux := http.NewServeMux()
//	api.RegisterHTTPHandlers("/api/", mux)
//
// Config carries the cross-cutting options every surface honours: CORS and
// a request body limit.
package gateway
