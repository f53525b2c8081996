package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/pkg/httpretry"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
)

// LineSender pushes messages through the LINE Messaging API.
type LineSender struct {
	channelToken string
	baseURL      string
	client       httpretry.HTTPDoer
}

// NewLineSender creates a LINE push sender using the given channel access
// token. Pushes retry on 429/5xx with backoff.
func NewLineSender(channelToken string) *LineSender {
	return &LineSender{
		channelToken: channelToken,
		baseURL:      "https://api.line.me/v2/bot",
		client:       httpretry.NewRetryClient(nil, 3),
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (s *LineSender) SetBaseURL(u string) { s.baseURL = u }

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send pushes a single text message to the customer's LINE account.
func (s *LineSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if s.channelToken == "" {
		return nil, fmt.Errorf("line channel token not configured")
	}
	if msg.LineUserID == "" {
		return nil, fmt.Errorf("message has no line user id")
	}

	payload, err := json.Marshal(linePushRequest{
		To:       msg.LineUserID,
		Messages: []lineMessage{{Type: "text", Text: msg.Body}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/message/push", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.channelToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return &SendResult{
			Success: false,
			Error:   fmt.Errorf("line error %d: %s", resp.StatusCode, string(body)),
			Channel: "line",
		}, nil
	}

	logger.Debug("line push sent", "customer_id", msg.CustomerID)

	return &SendResult{Success: true, Channel: "line", SentAt: time.Now()}, nil
}
