package app

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account.
type User struct {
	// Unique account ID, assigned by the server.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// Display name.
	Name string `json:"name" bson:"name"`

	// Login email, unique across accounts (exact match).
	Email string `json:"email" bson:"email"`

	// bcrypt hash of the password. Never leaves the server.
	PasswordHash string `json:"-" bson:"passwordHash"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Session is what register and login hand back to the client.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
