package dto

// PostMessageRequest attaches a note to a tracked entity.
type PostMessageRequest struct {
	Text string `json:"text"`
}
