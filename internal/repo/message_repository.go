package repo

import (
	"Chatline/internal/db"
	"Chatline/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage   = errors.New("invalid message: sender and receiver are required")
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrMessageNotFound  = errors.New("message not found")
	ErrInvalidUserID    = errors.New("invalid user ID: cannot be empty")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration, read paths only
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	defaultConversationLimit = 50
	maxConversationLimit     = 100
)

// ConversationQuery selects one page of history. Limit defaults to 50 and is capped at 100.
type ConversationQuery struct {
	Page   int64
	Limit  int64
	Before *time.Time
}

func (q ConversationQuery) limit() int64 {
	switch {
	case q.Limit < 1:
		return defaultConversationLimit
	case q.Limit > maxConversationLimit:
		return maxConversationLimit
	}
	return q.Limit
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

// MessageRepository is the durable store for one-to-one chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	MarkDelivered(ctx context.Context, messageID string) error
	FindByID(ctx context.Context, messageID string) (*model.Message, error)
	Delete(ctx context.Context, messageID string) error
	FindConversation(ctx context.Context, userID, peerID string, query ConversationQuery) (*db.PaginatedResult[model.Message], error)
	MarkDeliveredFrom(ctx context.Context, receiverID, senderID string) (int64, error)
	MarkRead(ctx context.Context, readerID, senderID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger.With(zap.String("component", "message_repository")),
	}
}

// -----------------------------------------------------------------------------
// Create - persists a message exactly once, never retried
// -----------------------------------------------------------------------------

func (m *messageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := m.validateMessage(msg); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	stored := *msg
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}
	if stored.Type == "" {
		stored.Type = model.MessageTypeText
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if _, err := m.mongoRepo.Create(ctx, stored); err != nil {
		m.logger.Error("failed to insert message",
			zap.String("sender_id", stored.SenderID),
			zap.String("receiver_id", stored.ReceiverID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("insert message failed: %w", err)
	}

	m.logger.Debug("message inserted",
		zap.String("message_id", stored.ID.Hex()),
		zap.String("sender_id", stored.SenderID),
		zap.String("receiver_id", stored.ReceiverID),
	)
	return &stored, nil
}

// -----------------------------------------------------------------------------
// Delivery and read flags
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkDelivered(ctx context.Context, messageID string) error {
	if _, err := primitive.ObjectIDFromHex(messageID); err != nil {
		return ErrInvalidMessageID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := m.mongoRepo.UpdateByID(ctx, messageID, bson.M{"isDelivered": true}); err != nil {
		return fmt.Errorf("mark delivered failed: %w", err)
	}
	return nil
}

func (m *messageRepository) MarkDeliveredFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	if receiverID == "" || senderID == "" {
		return 0, ErrInvalidUserID
	}
	filter := db.NewFilter().
		Eq("receiverId", receiverID).
		Eq("senderId", senderID).
		Eq("isDelivered", false).
		Build()
	return m.updateFlag(ctx, filter, "isDelivered")
}

func (m *messageRepository) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	if readerID == "" || senderID == "" {
		return 0, ErrInvalidUserID
	}
	filter := db.NewFilter().
		Eq("receiverId", readerID).
		Eq("senderId", senderID).
		Eq("isRead", false).
		Build()
	return m.updateFlag(ctx, filter, "isRead")
}

func (m *messageRepository) updateFlag(ctx context.Context, filter bson.M, field string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := m.mongoRepo.UpdateMany(ctx, filter, bson.M{field: true})
	if err != nil {
		m.logger.Error("failed to update message flag", zap.String("field", field), zap.Error(err))
		return 0, fmt.Errorf("update %s failed: %w", field, err)
	}
	return result.ModifiedCount, nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *messageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("receiverId", userID).Eq("isRead", false).Build()

	var count int64
	err := m.withRetry(ctx, "count_unread", func() error {
		var err error
		count, err = m.mongoRepo.Count(ctx, filter)
		return err
	})
	if err != nil {
		return 0, m.handleReadError(err, userID)
	}
	return count, nil
}

// FindConversation returns a page of messages exchanged between userID and peerID, newest first.
func (m *messageRepository) FindConversation(ctx context.Context, userID, peerID string, query ConversationQuery) (*db.PaginatedResult[model.Message], error) {
	if userID == "" || peerID == "" {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	fb := db.NewFilter().Or(db.Between("senderId", "receiverId", userID, peerID)...)
	if query.Before != nil {
		fb.Lt("createdAt", *query.Before)
	}
	filter := fb.Build()

	var result *db.PaginatedResult[model.Message]
	err := m.withRetry(ctx, "find_conversation", func() error {
		var err error
		result, err = m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     query.Page,
			PageSize: query.limit(),
			SortBy:   "createdAt",
			SortDesc: true,
		})
		return err
	})
	if err != nil {
		return nil, m.handleReadError(err, userID)
	}

	m.logger.Debug("conversation loaded",
		zap.String("user_id", userID),
		zap.String("peer_id", peerID),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

// FindByID returns ErrMessageNotFound for unknown and malformed ids alike.
func (m *messageRepository) FindByID(ctx context.Context, messageID string) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var msg *model.Message
	err := m.withRetry(ctx, "find_message", func() error {
		var err error
		msg, err = m.mongoRepo.FindByID(ctx, messageID)
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, m.handleReadError(err, "")
	}
	return msg, nil
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

func (m *messageRepository) Delete(ctx context.Context, messageID string) error {
	if _, err := primitive.ObjectIDFromHex(messageID); err != nil {
		return ErrInvalidMessageID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	deleted, err := m.mongoRepo.DeleteByID(ctx, messageID)
	if err != nil {
		m.logger.Error("failed to delete message", zap.String("message_id", messageID), zap.Error(err))
		return fmt.Errorf("delete message failed: %w", err)
	}
	if deleted == 0 {
		return ErrMessageNotFound
	}

	m.logger.Debug("message deleted", zap.String("message_id", messageID))
	return nil
}

func (m *messageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	return m.mongoRepo.EnsureIndexes(ctx,
		mongo.IndexModel{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}}, Options: options.Index().SetName("unread")},
	)
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) validateMessage(msg *model.Message) error {
	if msg == nil || msg.SenderID == "" || msg.ReceiverID == "" {
		return ErrInvalidMessage
	}
	return nil
}

func (m *messageRepository) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return err
			}
			m.logger.Warn("retrying read",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
			)
		}

		lastErr = fn()
		if lastErr == nil || !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (m *messageRepository) handleReadError(err error, userID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("user_id", userID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("user_id", userID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("user_id", userID))
	return fmt.Errorf("read messages failed: %w", err)
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(retryDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
