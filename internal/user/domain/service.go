package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	DeleteUser(ctx context.Context, id snowflake.ID) error
}

type CreateUserRequest struct {
	Username  string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Password  string
	IPAddress string
	UserAgent string
}
