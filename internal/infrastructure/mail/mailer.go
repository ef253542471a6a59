package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradepost/pkg/logger"
)

// HTTPMailer posts new-message email jobs to an external mail service. When
// no endpoint is configured the mailer runs disabled and only logs, so local
// and test environments need no mail backend.
type HTTPMailer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPMailer(endpoint string) *HTTPMailer {
	return &HTTPMailer{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type newMessageEmailPayload struct {
	RecipientID string `json:"recipient_id"`
	RoomID      string `json:"room_id"`
	Preview     string `json:"preview"`
	Template    string `json:"template"`
}

func (m *HTTPMailer) SendNewMessageEmail(ctx context.Context, recipientID, roomID, preview string) error {
	if m.endpoint == "" {
		logger.Debug("Mailer disabled, skipping email to %s for room %s", recipientID, roomID)
		return nil
	}

	body, err := json.Marshal(newMessageEmailPayload{
		RecipientID: recipientID,
		RoomID:      roomID,
		Preview:     preview,
		Template:    "chat_new_message",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail service returned status %d", resp.StatusCode)
	}
	return nil
}
