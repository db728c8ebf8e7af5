package sinks

import (
	"encoding/json"
	"testing"
	"time"

	"ssw-alert-watcher/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertTime = time.Date(2025, 10, 10, 13, 55, 36, 0, time.UTC)

func failoverEvent() *types.FailoverEvent {
	return &types.FailoverEvent{
		EventMeta: types.EventMeta{ID: "evt-1", Timestamp: alertTime},
		FromPool:  "blue",
		ToPool:    "green",
	}
}

func errorRateEvent() *types.ErrorRateEvent {
	return &types.ErrorRateEvent{
		EventMeta:        types.EventMeta{ID: "evt-2", Timestamp: alertTime},
		RatePercent:      100.0 / 3.0,
		ThresholdPercent: 2,
		WindowLen:        200,
		CurrentPool:      "green",
	}
}

func TestRender_Failover(t *testing.T) {
	msg := Render(failoverEvent())

	assert.Equal(t, "🔄 Failover Detected", msg.Title)
	assert.Equal(t, "*Pool switch detected:* BLUE → GREEN", msg.Text)
	assert.Equal(t, []Field{
		{Label: "Previous Pool", Value: "BLUE"},
		{Label: "Current Pool", Value: "GREEN"},
		{Label: "Action Required", Value: "Check health of BLUE pool"},
	}, msg.Fields)
	assert.Equal(t, alertTime, msg.Timestamp)
}

func TestRender_ErrorRate(t *testing.T) {
	msg := Render(errorRateEvent())

	assert.Equal(t, "⚠️ High Error Rate Detected", msg.Title)
	assert.Equal(t, "*Error rate exceeded threshold:* 33.33% (threshold: 2.0%)", msg.Text)
	assert.Equal(t, []Field{
		{Label: "Current Error Rate", Value: "33.33%"},
		{Label: "Threshold", Value: "2.0%"},
		{Label: "Window Size", Value: "200 requests"},
		{Label: "Current Pool", Value: "GREEN"},
		{Label: "Action Required", Value: "Inspect upstream logs, consider pool toggle"},
	}, msg.Fields)
}

func TestRender_ErrorRateUnknownPool(t *testing.T) {
	event := errorRateEvent()
	event.CurrentPool = ""

	msg := Render(event)
	assert.Contains(t, msg.Fields, Field{Label: "Current Pool", Value: "Unknown"})
}

func TestFormatThreshold(t *testing.T) {
	assert.Equal(t, "2.0", formatThreshold(2))
	assert.Equal(t, "2.5", formatThreshold(2.5))
	assert.Equal(t, "0.0", formatThreshold(0))
	assert.Equal(t, "15.0", formatThreshold(15))
	assert.Equal(t, "0.125", formatThreshold(0.125))
}

func TestBuildSlackPayload(t *testing.T) {
	payload := BuildSlackPayload(Render(failoverEvent()))

	require.Len(t, payload.Blocks, 4)
	assert.Equal(t, "header", payload.Blocks[0].Type)
	assert.Equal(t, &SlackText{Type: "plain_text", Text: "🔄 Failover Detected", Emoji: true}, payload.Blocks[0].Text)
	assert.Equal(t, "section", payload.Blocks[1].Type)
	assert.Equal(t, "mrkdwn", payload.Blocks[1].Text.Type)
	assert.Equal(t, "section", payload.Blocks[2].Type)
	assert.Equal(t, SlackText{Type: "mrkdwn", Text: "*Previous Pool:*\nBLUE"}, payload.Blocks[2].Fields[0])
	assert.Equal(t, "context", payload.Blocks[3].Type)
	assert.Equal(t, "*Timestamp:* 2025-10-10 13:55:36 UTC", payload.Blocks[3].Elements[0].Text)
}

func TestBuildSlackPayload_NoFields(t *testing.T) {
	payload := BuildSlackPayload(Message{Title: "t", Text: "x", Timestamp: alertTime})

	require.Len(t, payload.Blocks, 3)
	assert.Equal(t, "context", payload.Blocks[2].Type)
}

func TestBuildSlackPayload_JSONShape(t *testing.T) {
	data, err := json.Marshal(BuildSlackPayload(Render(failoverEvent())))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	blocks := decoded["blocks"].([]interface{})
	header := blocks[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"type":  "plain_text",
		"text":  "🔄 Failover Detected",
		"emoji": true,
	}, header["text"])
	assert.NotContains(t, header, "fields")
}
