package repo

import (
	"Chatline/internal/db"
	"Chatline/internal/model"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads identities and mirrors their presence.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SetPresence(ctx context.Context, id string, presence model.Presence) error
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("component", "user_repository")),
	}
}

// GetUser returns ErrUserNotFound when no document has the given id.
func (r *userRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("failed to fetch user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("get user failed: %w", err)
	}

	return result, nil
}

func (r *userRepository) SetPresence(ctx context.Context, id string, presence model.Presence) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.UpdateByID(ctx, id, bson.M{
		"isOnline": presence.IsOnline,
		"lastSeen": presence.LastSeen,
		"socketId": presence.SocketID,
	})
	if err != nil {
		return fmt.Errorf("set presence failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	r.logger.Debug("presence updated",
		zap.String("user_id", id),
		zap.Bool("online", presence.IsOnline),
	)
	return nil
}
