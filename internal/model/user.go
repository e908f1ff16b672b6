package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username    string             `json:"username" bson:"username"`
	Email       string             `json:"email" bson:"email"`
	DisplayName string             `json:"displayName" bson:"displayName"`
	Avatar      string             `json:"avatar" bson:"avatar"`
	Bio         string             `json:"bio" bson:"bio"`
	Contacts    []string           `json:"contacts" bson:"contacts"`
	IsOnline    bool               `json:"isOnline" bson:"isOnline"`
	LastSeen    time.Time          `json:"lastSeen" bson:"lastSeen"`
	SocketID    string             `json:"socketId" bson:"socketId"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   *time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// UserID returns the hex form of the document id, which is the identity used on the wire.
func (u *User) UserID() string {
	return u.ID.Hex()
}

// Presence is the online state mirrored to the user document on connect and disconnect.
type Presence struct {
	IsOnline bool
	LastSeen time.Time
	SocketID string // connection id while online, empty when offline
}
