package models

import (
	"time"
)

type User struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Mobile    string    `json:"mobile" dynamodbav:"mobile"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

func (u *User) GetPK() string {
	return "USER!" + u.Mobile
}

func (u *User) GetSK() string {
	return "METADATA"
}
