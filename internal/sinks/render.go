package sinks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ssw-alert-watcher/pkg/types"
)

// Field is one labelled value of a rendered alert.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is the human-facing rendering of an alert event, shared by every
// sink that talks to people.
type Message struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Fields    []Field   `json:"fields,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Render formats event. Pool names are upper-cased and the error rate is
// shown with two decimals.
func Render(event types.AlertEvent) Message {
	switch e := event.(type) {
	case *types.FailoverEvent:
		from := strings.ToUpper(e.FromPool)
		to := strings.ToUpper(e.ToPool)
		return Message{
			Title: "🔄 Failover Detected",
			Text:  fmt.Sprintf("*Pool switch detected:* %s → %s", from, to),
			Fields: []Field{
				{Label: "Previous Pool", Value: from},
				{Label: "Current Pool", Value: to},
				{Label: "Action Required", Value: fmt.Sprintf("Check health of %s pool", from)},
			},
			Timestamp: e.Timestamp,
		}

	case *types.ErrorRateEvent:
		threshold := formatThreshold(e.ThresholdPercent)
		pool := "Unknown"
		if e.CurrentPool != "" {
			pool = strings.ToUpper(e.CurrentPool)
		}
		return Message{
			Title: "⚠️ High Error Rate Detected",
			Text:  fmt.Sprintf("*Error rate exceeded threshold:* %.2f%% (threshold: %s%%)", e.RatePercent, threshold),
			Fields: []Field{
				{Label: "Current Error Rate", Value: fmt.Sprintf("%.2f%%", e.RatePercent)},
				{Label: "Threshold", Value: threshold + "%"},
				{Label: "Window Size", Value: fmt.Sprintf("%d requests", e.WindowLen)},
				{Label: "Current Pool", Value: pool},
				{Label: "Action Required", Value: "Inspect upstream logs, consider pool toggle"},
			},
			Timestamp: e.Timestamp,
		}
	}

	return Message{
		Title:     "Alert",
		Text:      fmt.Sprintf("unknown alert kind %q", event.Kind()),
		Timestamp: event.Meta().Timestamp,
	}
}

// formatThreshold prints the shortest exact form but always keeps one
// decimal, so 2 renders as "2.0" and 2.5 as "2.5".
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
