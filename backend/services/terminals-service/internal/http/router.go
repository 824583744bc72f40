package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Health    http.HandlerFunc
	Terminals http.HandlerFunc
	WS        http.HandlerFunc
	// Auth wraps the tenant-scoped endpoints.
	Auth func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	protect := routes.Auth
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.Terminals != nil {
		mux.Handle("/terminals", protect(method(http.MethodGet, routes.Terminals)))
	}
	if routes.WS != nil {
		mux.Handle("/ws", protect(method(http.MethodGet, routes.WS)))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
