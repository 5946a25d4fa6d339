package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/stockbot/internal/httputil"
)

type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        logrus.FieldLogger
}

func NewSender(webhookURL, botName string, log logrus.FieldLogger) *Sender {
	if botName == "" {
		botName = "StockBot"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		log: log.WithField("component", "notify"),
	}
}

// Send logs msg and, when a webhook is configured, posts it. Delivery
// failures are logged and otherwise ignored.
func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info(msg)

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		s.log.WithError(err).Error("marshal webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, s.log, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.WithError(err).Error("webhook delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warnf("webhook answered %d", resp.StatusCode)
	}
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
