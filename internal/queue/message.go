package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidMessage marks a message that can never succeed; it goes to the
// dead-letter queue without retries.
var ErrInvalidMessage = errors.New("invalid queue message")

type ResearchJobMsg struct {
	JobID       string    `json:"job_id"`
	Query       string    `json:"query"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func ParseResearchJob(body []byte) (ResearchJobMsg, error) {
	var msg ResearchJobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, errors.Join(ErrInvalidMessage, err)
	}
	msg.Query = strings.TrimSpace(msg.Query)
	if msg.JobID == "" || msg.Query == "" {
		return msg, errors.Join(ErrInvalidMessage, errors.New("job_id and query are required"))
	}
	return msg, nil
}
