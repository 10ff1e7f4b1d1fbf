package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash *string            `bson:"passwordHash,omitempty" json:"-"`
	DisplayName  string             `bson:"displayName" json:"displayName"`
	PhotoURL     string             `bson:"photoURL" json:"photoURL"`
	IsVerified   bool               `bson:"isVerified" json:"isVerified"`
	CreatedAt    int64              `bson:"createdAt" json:"createdAt"`
	LastSeen     int64              `bson:"lastSeen" json:"lastSeen"`
}
