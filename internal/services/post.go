package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/crypto"
	"github.com/secureblog/apiserver/types"
	"go.uber.org/zap"
)

// ContentUnavailable replaces a field whose ciphertext no longer
// authenticates under the owner's current key, e.g. a post written
// before a password change. Decryption fails closed; garbled plaintext
// is never shown.
const ContentUnavailable = "Error: content unavailable"

// ErrPostForbidden is returned when a user mutates a post they do not own.
var ErrPostForbidden = errors.New("not the author of this post")

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// PostService encrypts post content at rest. Title and body are sealed
// independently under a key derived on demand from the author's stored
// credential digest and per-account salt; the key itself is never
// persisted.
type PostService struct {
	posts    PostRepository
	users    UserRepository
	auditLog *audit.Log
	logger   *zap.Logger
}

func NewPostService(posts PostRepository, users UserRepository, auditLog *audit.Log, logger *zap.Logger) *PostService {
	return &PostService{posts: posts, users: users, auditLog: auditLog, logger: logger}
}

// List returns all posts, newest first, with title and body decrypted
// under each author's key. Fields that fail authentication are replaced
// with the content-unavailable marker.
func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	keys := make(map[int][]byte)
	for i := range posts {
		key, err := s.contentKey(ctx, posts[i].UserID, keys)
		if err != nil {
			return nil, err
		}
		s.decryptInto(&posts[i], key)
	}
	return posts, nil
}

// Get returns one post decrypted under its author's key.
func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}

	key, err := s.contentKey(ctx, post.UserID, nil)
	if err != nil {
		return types.Post{}, err
	}
	s.decryptInto(&post, key)
	return post, nil
}

// Create encrypts and stores a new post for author.
func (s *PostService) Create(ctx context.Context, author types.User, title, body string, ip string) (types.Post, error) {
	sealed, err := s.encryptFields(author, title, body)
	if err != nil {
		return types.Post{}, err
	}
	sealed.UserID = author.ID

	post, err := s.posts.Create(ctx, sealed)
	if err != nil {
		return types.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditPostMutation,
		Email:    author.Email,
		Role:     string(author.Role),
		IP:       ip,
		Message:  fmt.Sprintf("Post %d created.", post.ID),
	})

	post.Title = title
	post.Body = body
	return post, nil
}

// Update re-encrypts a post with new content. Only the author may update.
func (s *PostService) Update(ctx context.Context, author types.User, id int, title, body string, ip string) (types.Post, error) {
	existing, err := s.posts.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if existing.UserID != author.ID {
		s.recordUnauthorized(ctx, author, ip, fmt.Sprintf("Denied update of post %d.", id))
		return types.Post{}, ErrPostForbidden
	}

	sealed, err := s.encryptFields(author, title, body)
	if err != nil {
		return types.Post{}, err
	}
	sealed.ID = existing.ID
	sealed.UserID = existing.UserID

	post, err := s.posts.Update(ctx, sealed)
	if err != nil {
		return types.Post{}, fmt.Errorf("update post: %w", err)
	}

	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditPostMutation,
		Email:    author.Email,
		Role:     string(author.Role),
		IP:       ip,
		Message:  fmt.Sprintf("Post %d updated.", post.ID),
	})

	post.Title = title
	post.Body = body
	return post, nil
}

// Delete removes a post. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, author types.User, id int, ip string) error {
	existing, err := s.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != author.ID {
		s.recordUnauthorized(ctx, author, ip, fmt.Sprintf("Denied delete of post %d.", id))
		return ErrPostForbidden
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditPostMutation,
		Email:    author.Email,
		Role:     string(author.Role),
		IP:       ip,
		Message:  fmt.Sprintf("Post %d deleted.", id),
	})
	return nil
}

func (s *PostService) encryptFields(author types.User, title, body string) (types.Post, error) {
	key, err := crypto.DeriveContentKey(author.PasswordHash, author.Salt)
	if err != nil {
		return types.Post{}, err
	}

	sealedTitle, err := crypto.Encrypt(key, title)
	if err != nil {
		return types.Post{}, fmt.Errorf("encrypt title: %w", err)
	}
	sealedBody, err := crypto.Encrypt(key, body)
	if err != nil {
		return types.Post{}, fmt.Errorf("encrypt body: %w", err)
	}

	return types.Post{Title: sealedTitle, Body: sealedBody}, nil
}

// contentKey derives the owner's content key, reusing cache across one
// listing so each author's key is derived once.
func (s *PostService) contentKey(ctx context.Context, userID int, cache map[int][]byte) ([]byte, error) {
	if cache != nil {
		if key, ok := cache[userID]; ok {
			return key, nil
		}
	}

	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load post owner: %w", err)
	}

	key, err := crypto.DeriveContentKey(owner.PasswordHash, owner.Salt)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache[userID] = key
	}
	return key, nil
}

func (s *PostService) decryptInto(post *types.Post, key []byte) {
	title, err := crypto.Decrypt(key, post.Title)
	if err != nil {
		title = ContentUnavailable
	}
	body, err := crypto.Decrypt(key, post.Body)
	if err != nil {
		body = ContentUnavailable
	}
	post.Title = title
	post.Body = body
}

func (s *PostService) recordUnauthorized(ctx context.Context, user types.User, ip, message string) {
	s.auditLog.Record(ctx, types.AuditEvent{
		Severity: types.SeverityWarning,
		Category: types.AuditUnauthorized,
		Email:    user.Email,
		Role:     string(user.Role),
		IP:       ip,
		Message:  message,
	})
}
