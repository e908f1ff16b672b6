package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Message represents a one-to-one chat message in MongoDB
type Message struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderID     string             `json:"senderId" bson:"senderId"`
	ReceiverID   string             `json:"receiverId" bson:"receiverId"`
	Content      string             `json:"content" bson:"content"`
	Type         string             `json:"type" bson:"type"`
	MediaURL     string             `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	ThumbnailURL string             `json:"thumbnailUrl,omitempty" bson:"thumbnailUrl,omitempty"`
	IsDelivered  bool               `json:"isDelivered" bson:"isDelivered"`
	IsRead       bool               `json:"isRead" bson:"isRead"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}
