package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secureblog/apiserver/types"
)

// UserLister lists all accounts for the admin console.
type UserLister interface {
	List(ctx context.Context) ([]types.User, error)
}

// PostLister lists all posts, raw, for the admin console. Title and body
// stay as stored ciphertext here; the admin console shows rows as they
// sit in the database.
type PostLister interface {
	List(ctx context.Context) ([]types.Post, error)
}

// AdminHandler serves the database admin console listings.
type AdminHandler struct {
	users UserLister
	posts PostLister
}

// NewAdminHandler constructs an AdminHandler with the provided dependencies.
func NewAdminHandler(users UserLister, posts PostLister) *AdminHandler {
	return &AdminHandler{users: users, posts: posts}
}

// AdminRouter registers admin console routes, restricted to the database
// administrator role.
func AdminRouter(r chi.Router, users UserLister, posts PostLister, mw *Middleware) {
	handler := NewAdminHandler(users, posts)

	r.Use(mw.RequireRoles(types.RoleDBAdmin))
	r.Get("/", handler.Index)
	r.Get("/users", handler.Users)
	r.Get("/posts", handler.Posts)
}

// Index is the admin console landing page.
func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"users": "/admin/users",
		"posts": "/admin/posts",
	})
}

// Users lists all accounts.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Posts lists all posts as stored.
func (h *AdminHandler) Posts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
