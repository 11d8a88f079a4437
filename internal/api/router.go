// Package api exposes the register's REST surface. Handlers are thin
// adapters: capability checks live in the middleware and the lifecycle
// engine, transition rules only in the engine.
package api

import (
	"database/sql"
	"net/http"

	"github.com/foundkeep/foundkeep/internal/lifecycle"
	"github.com/foundkeep/foundkeep/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, engine *lifecycle.Engine, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{Engine: engine}

	optAuth := OptionalAuth(jwtSecret, db)
	requireGuard := RequireRole(model.RoleGuard)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Auth.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("POST /api/auth/logout", optAuth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", optAuth(http.HandlerFunc(authHandler.ChangePassword)))

	// Items. Read routes are public; the optional auth only decides whether
	// claimant details are redacted. Create and claim are gated inside the
	// engine because both have configurable anonymous policies.
	mux.Handle("GET /api/items", optAuth(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/recent", optAuth(http.HandlerFunc(itemsHandler.Recent)))
	mux.Handle("GET /api/items/search", optAuth(http.HandlerFunc(itemsHandler.Search)))
	mux.Handle("GET /api/items/stats", optAuth(requireGuard(http.HandlerFunc(itemsHandler.GetStats))))
	mux.Handle("GET /api/items/{id}", optAuth(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("POST /api/items", optAuth(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/items/{id}", optAuth(requireGuard(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("PUT /api/items/{id}/claim", optAuth(http.HandlerFunc(itemsHandler.Claim)))
	mux.Handle("PUT /api/items/{id}/delivered", optAuth(requireGuard(http.HandlerFunc(itemsHandler.Delivered))))
	mux.Handle("PATCH /api/items/{id}/status", optAuth(requireGuard(http.HandlerFunc(itemsHandler.SetStatus))))
	mux.Handle("DELETE /api/items/{id}", optAuth(requireGuard(http.HandlerFunc(itemsHandler.Delete))))

	// Guard accounts (admin only).
	mux.Handle("GET /api/users", optAuth(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", optAuth(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", optAuth(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", optAuth(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", optAuth(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", optAuth(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
