package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterBuilder(t *testing.T) {
	f := NewFilter().
		Eq("receiverId", "bob").
		Lt("createdAt", 42).
		Build()

	assert.Equal(t, bson.M{
		"receiverId": "bob",
		"createdAt":  bson.M{"$lt": 42},
	}, f)
}

func TestFilterBuilderOrSkipsEmpty(t *testing.T) {
	f := NewFilter().Or().Build()
	_, ok := f["$or"]
	assert.False(t, ok)
}

func TestBetweenMatchesBothDirections(t *testing.T) {
	f := NewFilter().Or(Between("senderId", "receiverId", "alice", "bob")...).Build()

	assert.Equal(t, []bson.M{
		{"senderId": "alice", "receiverId": "bob"},
		{"senderId": "bob", "receiverId": "alice"},
	}, f["$or"])
}
