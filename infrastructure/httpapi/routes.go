package httpapi

import "net/http"

// SetupRoutes wires the application routes into a ServeMux.
func SetupRoutes(login, liveness, stats, wsUpgrade http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", liveness)
	mux.HandleFunc("/healthz", stats)
	mux.HandleFunc("/api/auth/login", login)
	mux.HandleFunc("/ws", wsUpgrade)
	return mux
}
