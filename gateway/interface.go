package gateway

import "net/http"

// HTTPHandler is implemented by surfaces that expose HTTP routes.
type HTTPHandler interface {
	// RegisterHTTPHandlers registers the surface's routes under prefix.
	RegisterHTTPHandlers(prefix string, mux *http.ServeMux)
}
