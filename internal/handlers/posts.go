package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/internal/store"
)

// PostsHandler provides the post CRUD endpoints. Content is encrypted
// and decrypted by the post service; this layer never sees key material.
type PostsHandler struct {
	posts *services.PostService
}

// NewPostsHandler constructs a PostsHandler with the provided dependencies.
func NewPostsHandler(posts *services.PostService) *PostsHandler {
	return &PostsHandler{posts: posts}
}

// PostsRouter registers post routes on the given router. Every route
// requires an authenticated session.
func PostsRouter(r chi.Router, posts *services.PostService, mw *Middleware) {
	handler := NewPostsHandler(posts)

	r.Use(mw.RequireAuth)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)
}

type PostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// List returns all posts, newest first, decrypted.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Get returns one post, decrypted.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found.")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Create stores a new post for the authenticated user.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	req, ok := decodePost(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Create(r.Context(), user, req.Title, req.Body, r.RemoteAddr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Update replaces a post's content. Only the author may update.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	id, ok := postID(w, r)
	if !ok {
		return
	}
	req, ok := decodePost(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Update(r.Context(), user, id, req.Title, req.Body, r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Post not found.")
		case errors.Is(err, services.ErrPostForbidden):
			writeError(w, http.StatusForbidden, "You do not have permission to update this post.")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update post")
		}
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete removes a post. Only the author may delete.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), user, id, r.RemoteAddr); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Post not found.")
		case errors.Is(err, services.ErrPostForbidden):
			writeError(w, http.StatusForbidden, "You do not have permission to delete this post.")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete post")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted."})
}

func postID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return 0, false
	}
	return id, true
}

func decodePost(w http.ResponseWriter, r *http.Request) (PostRequest, bool) {
	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return PostRequest{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return PostRequest{}, false
	}
	return req, true
}
