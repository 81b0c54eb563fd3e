package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
// Form posts require the CSRF token.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Page)
	mux.HandleFunc("POST /login", requireCSRF(h.Login))
	mux.HandleFunc("POST /register", requireCSRF(h.Register))
	mux.HandleFunc("POST /logout", requireCSRF(h.Logout))
	mux.HandleFunc("POST /send", requireCSRF(h.Send))
	mux.HandleFunc("POST /send-image", requireCSRF(h.SendImage))
}
