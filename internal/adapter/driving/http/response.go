package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeNotice writes a user-facing notice as a JSON error response.
func writeNotice(w http.ResponseWriter, status int, n *model.Notice) {
	writeJSON(w, status, errorResponse{Error: n.Title, Message: n.Message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SessionResponse describes the resolved bootstrap state.
type SessionResponse struct {
	State        string `json:"state"`
	Initializing bool   `json:"initializing"`
	Email        string `json:"email,omitempty"`
	UID          string `json:"uid,omitempty"`
	Offline      bool   `json:"offline"`
	Uploading    bool   `json:"uploading"`
	LastSync     string `json:"lastSync,omitempty"`
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// CredentialsRequest is the body of the login and register endpoints.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SendTextRequest is the body of the send endpoint.
type SendTextRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the JSON representation of a displayed message. It
// keeps the cached record layout.
type MessageResponse struct {
	ID          string           `json:"id"`
	Text        string           `json:"text"`
	User        string           `json:"user"`
	ImageBase64 *string          `json:"imageBase64,omitempty"`
	CreatedAt   *model.Timestamp `json:"createdAt"`
	Time        string           `json:"time,omitempty"`
	Mine        bool             `json:"mine"`
}

// toMessageResponses converts the displayed list. me is the sender name of
// the current identity.
func toMessageResponses(msgs []model.Message, me string) []MessageResponse {
	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		mr := MessageResponse{
			ID:          m.ID,
			Text:        m.Text,
			User:        m.User,
			ImageBase64: m.ImageBase64,
			CreatedAt:   m.CreatedAt,
			Mine:        m.User == me,
		}
		if m.CreatedAt != nil {
			mr.Time = m.CreatedAt.Time().Format(time.RFC3339)
		}
		resp = append(resp, mr)
	}
	return resp
}
