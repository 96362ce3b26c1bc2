package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const zeptoEndpoint = "https://api.zeptomail.com/v1.1/email"

// ZeptoMailer sends through the ZeptoMail transactional API.
type ZeptoMailer struct {
	token    string
	fromAddr string
	fromName string
	endpoint string
	client   *http.Client
}

func NewZeptoMailer(token, fromAddr, fromName string) *ZeptoMailer {
	return &ZeptoMailer{
		token:    token,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: zeptoEndpoint,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type zeptoRecipient struct {
	EmailAddress zeptoAddress `json:"email_address"`
}

type zeptoRequest struct {
	From     zeptoAddress     `json:"from"`
	To       []zeptoRecipient `json:"to"`
	Subject  string           `json:"subject"`
	HTMLBody string           `json:"htmlbody"`
}

func (m *ZeptoMailer) SendVerification(ctx context.Context, to, verifyURL string) error {
	payload := zeptoRequest{
		From:     zeptoAddress{Address: m.fromAddr, Name: m.fromName},
		To:       []zeptoRecipient{{EmailAddress: zeptoAddress{Address: to}}},
		Subject:  verifySubject,
		HTMLBody: verificationBody(verifyURL),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("zeptomail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("zeptomail responded %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}

// withTimeout is used by tests to shrink the client deadline.
func (m *ZeptoMailer) withTimeout(d time.Duration) *ZeptoMailer {
	m.client.Timeout = d
	return m
}
