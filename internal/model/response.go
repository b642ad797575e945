package model

import "time"

// APIResponse is the envelope of every successful response.
type APIResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ShareResponse carries a freshly built share link.
type ShareResponse struct {
	URL string `json:"url"`
}

// BoardEvent is pushed to websocket subscribers after every settled change.
type BoardEvent struct {
	Type        string    `json:"type"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	MemberID    string    `json:"memberId,omitempty"`
	Page        int       `json:"page,omitempty"`
	TotalPages  int       `json:"totalPages,omitempty"`
	Link        string    `json:"link,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Board event types.
const (
	EventMemberAdded   = "member_added"
	EventMemberUpdated = "member_updated"
	EventMemberRemoved = "member_removed"
	EventPageChanged   = "page_changed"
	EventClipboard     = "clipboard"
	EventPing          = "ping"
	EventPong          = "pong"
)

// NewBoardEvent stamps an event of the given type with the current time.
func NewBoardEvent(eventType string) BoardEvent {
	return BoardEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
