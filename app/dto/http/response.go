package http

import "github.com/vibast-solutions/ms-go-accounts/app/entity"

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type PasswordResponse struct {
	Password string `json:"password"`
}

// UserResponse is the only serialized view of an account. The hashed
// password and the admin/active flags never leave the service.
type UserResponse struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

func NewUserResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:    user.ID,
		Email: user.Email,
	}
}

func NewUserListResponse(users []*entity.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

type MessageResponse struct {
	Description string `json:"description"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
