package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
)

// PlaceholderWebhookURL is the sample URL shipped in example configs. It is
// treated as "not configured".
const PlaceholderWebhookURL = "https://hooks.slack.com/services/YOUR/WEBHOOK/URL"

const defaultSlackTimeout = 10 * time.Second

// SlackPayload is an incoming-webhook message made of Block Kit blocks.
type SlackPayload struct {
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock covers the header, section and context block types.
type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

// SlackText is a plain_text or mrkdwn text object.
type SlackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// BuildSlackPayload lays out msg as header, text section, optional fields
// section and a timestamp context line.
func BuildSlackPayload(msg Message) SlackPayload {
	blocks := []SlackBlock{
		{Type: "header", Text: &SlackText{Type: "plain_text", Text: msg.Title, Emoji: true}},
		{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: msg.Text}},
	}

	if len(msg.Fields) > 0 {
		fields := make([]SlackText, 0, len(msg.Fields))
		for _, f := range msg.Fields {
			fields = append(fields, SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", f.Label, f.Value)})
		}
		blocks = append(blocks, SlackBlock{Type: "section", Fields: fields})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Elements: []SlackText{{
			Type: "mrkdwn",
			Text: "*Timestamp:* " + msg.Timestamp.UTC().Format("2006-01-02 15:04:05") + " UTC",
		}},
	})

	return SlackPayload{Blocks: blocks}
}

// SlackSink posts alerts to a Slack incoming webhook.
type SlackSink struct {
	config     types.SlackSinkConfig
	logger     *logrus.Logger
	httpClient *http.Client
	*deliveryQueue
}

// NewSlackSink cria um novo sink para Slack
func NewSlackSink(config types.SlackSinkConfig, logger *logrus.Logger) (*SlackSink, error) {
	if config.WebhookURL == "" || config.WebhookURL == PlaceholderWebhookURL {
		return nil, apperrors.ConfigError("slack_sink", "webhook_url is not configured")
	}

	timeout := defaultSlackTimeout
	if config.Timeout != "" {
		t, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, apperrors.ConfigError("slack_sink", "invalid timeout").Wrap(err)
		}
		timeout = t
	}

	s := &SlackSink{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
	s.deliveryQueue = newDeliveryQueue("slack", config.QueueSize, timeout, s.post, logger)
	return s, nil
}

func (s *SlackSink) Name() string { return "slack" }

// Start inicia o worker de entrega
func (s *SlackSink) Start(ctx context.Context) error {
	if err := s.start(); err != nil {
		return err
	}
	s.logger.WithField("timeout", s.timeout).Info("Slack sink started")
	return nil
}

// Stop para o sink
func (s *SlackSink) Stop() error {
	s.stop()
	s.httpClient.CloseIdleConnections()
	return nil
}

// Notify queues event for delivery and returns immediately.
func (s *SlackSink) Notify(ctx context.Context, event types.AlertEvent) error {
	return s.enqueue(ctx, event)
}

// IsHealthy verifica se o sink está saudável
func (s *SlackSink) IsHealthy() bool {
	return s.healthy()
}

// Stats returns delivery counters.
func (s *SlackSink) Stats() DeliveryStats {
	return s.stats()
}

func (s *SlackSink) post(ctx context.Context, event types.AlertEvent) error {
	data, err := json.Marshal(BuildSlackPayload(Render(event)))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.SinkError("slack", "post", fmt.Sprintf("slack returned status %d", resp.StatusCode)).
			WithMetadata("status_code", resp.StatusCode).
			WithMetadata("body", string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
