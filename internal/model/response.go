package model

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse acknowledges a write that returns no document.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SessionResponse is returned by every auth branch that ends in a token.
type SessionResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// SessionInfo describes the bearer token presented on GET /api/auth/session.
type SessionInfo struct {
	Authenticated bool      `json:"authenticated"`
	User          User      `json:"user"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// IdentityStatus is the check-email answer.
type IdentityStatus struct {
	Authorized  bool   `json:"authorized"`
	HasPassword bool   `json:"hasPassword"`
	HasMobile   bool   `json:"hasMobile"`
	Email       string `json:"email"`
}

// BucketResponse is the body of a content read.
type BucketResponse struct {
	Data      json.RawMessage `json:"data"`
	IsDefault bool            `json:"isDefault"`
}

// BucketSummary is one entry of the content index.
type BucketSummary struct {
	Key       string     `json:"key"`
	IsDefault bool       `json:"isDefault"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ListResponse wraps collection results.
type ListResponse[T any] struct {
	Resource []T `json:"resource"`
	Count    int `json:"count"`
}
