package service

import (
	"Chatline/internal/model"
	"Chatline/internal/repo"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ConversationPage is one page of history between two users, oldest message first.
type ConversationPage struct {
	Messages   []model.Message `json:"messages"`
	Page       int64           `json:"page"`
	Limit      int64           `json:"limit"`
	TotalPages int64           `json:"totalPages"`
	Total      int64           `json:"total"`
}

var (
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrNotMessageOwner  = errors.New("only the sender can delete a message")
)

// SendMessageRequest is the body of a REST send.
type SendMessageRequest struct {
	ReceiverID   string `json:"receiverId"`
	Content      string `json:"content"`
	Type         string `json:"type"`
	MediaURL     string `json:"mediaUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type MessageService interface {
	Send(ctx context.Context, senderID string, req SendMessageRequest) (*model.Message, error)
	Delete(ctx context.Context, userID, messageID string) error
	GetConversation(ctx context.Context, userID, peerID string, query repo.ConversationQuery) (*ConversationPage, error)
	MarkRead(ctx context.Context, readerID, peerID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type messageService struct {
	messageRepo repo.MessageRepository
	userRepo    repo.UserRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewMessageService(messageRepo repo.MessageRepository, userRepo repo.UserRepository, logger *zap.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		logger:      logger.With(zap.String("component", "message_service")),
		now:         time.Now,
	}
}

// Send stores a message for an existing receiver. It is not pushed over the
// socket; the receiver picks it up from history.
func (s *messageService) Send(ctx context.Context, senderID string, req SendMessageRequest) (*model.Message, error) {
	if _, err := s.userRepo.GetUser(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	msg, err := s.messageRepo.Create(ctx, &model.Message{
		SenderID:     senderID,
		ReceiverID:   req.ReceiverID,
		Content:      req.Content,
		Type:         msgType,
		MediaURL:     req.MediaURL,
		ThumbnailURL: req.ThumbnailURL,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("message stored over http",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", req.ReceiverID),
	)
	return msg, nil
}

// Delete removes messageID when userID sent it.
func (s *messageService) Delete(ctx context.Context, userID, messageID string) error {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotMessageOwner
	}
	return s.messageRepo.Delete(ctx, messageID)
}

// GetConversation loads history and marks everything peerID sent to userID as delivered.
func (s *messageService) GetConversation(ctx context.Context, userID, peerID string, query repo.ConversationQuery) (*ConversationPage, error) {
	result, err := s.messageRepo.FindConversation(ctx, userID, peerID, query)
	if err != nil {
		return nil, err
	}

	marked, err := s.messageRepo.MarkDeliveredFrom(ctx, userID, peerID)
	if err != nil {
		// history is still useful without the flag update
		s.logger.Warn("failed to mark conversation delivered",
			zap.String("user_id", userID),
			zap.String("peer_id", peerID),
			zap.Error(err),
		)
	} else {
		for i := range result.Data {
			if result.Data[i].SenderID == peerID && result.Data[i].ReceiverID == userID {
				result.Data[i].IsDelivered = true
			}
		}
	}

	s.logger.Debug("conversation served",
		zap.String("user_id", userID),
		zap.String("peer_id", peerID),
		zap.Int64("marked_delivered", marked),
	)

	return &ConversationPage{
		Messages:   Reverse(result.Data),
		Page:       result.Page,
		Limit:      result.PageSize,
		TotalPages: result.TotalPages,
		Total:      result.Total,
	}, nil
}

func (s *messageService) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	return s.messageRepo.MarkRead(ctx, readerID, peerID)
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.messageRepo.CountUnread(ctx, userID)
}
