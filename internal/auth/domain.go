package auth

import "github.com/odyssey-erp/odyssey-bank/internal/accounts"

// UserSummary is the account excerpt returned on login.
type UserSummary struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Type  accounts.Kind `json:"type"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

func summarize(acc accounts.Account) UserSummary {
	return UserSummary{ID: acc.ID, Name: acc.Name, Email: acc.Email, Type: acc.Kind}
}
