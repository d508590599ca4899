package dto

import "github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/types"

// MessageListResponse is the get-messages response body
type MessageListResponse struct {
	Messages    []types.WireMessage `json:"messages"`
	NextAfterTs string              `json:"next_after_ts"`
}

// AccessResponse is the block and unblock response body
type AccessResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	State   string `json:"state"`
}
