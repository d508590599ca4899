package types

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// ChatSubmission is one element of the chat webhook request body.
// The webhook expects a JSON array with a single element.
type ChatSubmission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ChatReply is one element of the chat webhook response. The backend answers
// with either an array of these or a single object.
type ChatReply struct {
	Reply  string `json:"reply,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// MessagePage is the get-messages response. Messages is kept raw so that a
// single malformed item does not invalidate the page.
type MessagePage struct {
	Messages    *[]json.RawMessage `json:"messages"`
	NextAfterTs Scalar             `json:"next_after_ts"`
}

// WireMessage is one record of the get-messages response
type WireMessage struct {
	ID        Scalar `json:"id"`
	Content   string `json:"content"`
	Direction string `json:"direction"` // user or anything else (bot)
	CreatedAt Scalar `json:"created_at"`
}

// AccessRequest is the body of the block and unblock webhooks
type AccessRequest struct {
	Email string `json:"email"`
}

// Scalar is a JSON string or number kept as text. Record ids and timestamps
// come from the backend database and their JSON type varies by workflow.
type Scalar string

// UnmarshalJSON accepts strings, numbers and null
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := sonic.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := sonic.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Scalar(n.String())
	return nil
}
