package server

import (
	"context"

	"soundvault/config"
	"soundvault/core/session"
	"soundvault/model"
	"soundvault/repository"
	"soundvault/storage"
)

// APIHandler holds every collaborator the HTTP surface needs. All stores are
// injected at construction time and held for the process lifetime.
type APIHandler struct {
	cfg      *config.Config
	users    repository.UserRepository
	songs    repository.SongRepository
	blobs    storage.BlobStore
	sessions *session.Store
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	cfg *config.Config,
	users repository.UserRepository,
	songs repository.SongRepository,
	blobs storage.BlobStore,
	sessions *session.Store,
) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		users:    users,
		songs:    songs,
		blobs:    blobs,
		sessions: sessions,
	}
}

type contextKey int

const userContextKey contextKey = iota

func contextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// userFromContext returns the authenticated account attached by the auth
// middleware, or nil on unauthenticated routes.
func userFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}
