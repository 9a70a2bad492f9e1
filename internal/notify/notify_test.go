package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dumpkeep/internal/config"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1048576 * 1024, "1.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSize(tt.bytes))
		})
	}
}

func sampleSummary() Summary {
	start := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	return Summary{
		RunID:      "f3a1c2",
		Status:     StatusPartial,
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Databases: []DatabaseSummary{
			{
				Database: "shop",
				DumpOK:   true,
				Size:     1048576,
				Uploads: []UploadSummary{
					{Destination: "local", OK: true, Attempts: 1, Duration: 120 * time.Millisecond},
					{Destination: "ftp", OK: false, Attempts: 3, Duration: 9 * time.Second, Error: "connection refused"},
				},
				Deleted: 2,
			},
			{Database: "crm", DumpOK: false, Error: "mysqldump was denied access"},
		},
	}
}

func TestSummary_Subject(t *testing.T) {
	s := sampleSummary()
	assert.Contains(t, s.Subject(), "partially failed")
	assert.Contains(t, s.Subject(), "1/2")

	s.Status = StatusSuccess
	assert.Contains(t, s.Subject(), "successful")

	s.Status = StatusFailed
	assert.Contains(t, s.Subject(), "failed")
}

func TestSummary_Render(t *testing.T) {
	out := sampleSummary().Render()

	assert.Contains(t, out, "shop: dumped 1.00 MB")
	assert.Contains(t, out, "local: ok (1 attempt(s)")
	assert.Contains(t, out, "ftp: FAILED after 3 attempt(s): connection refused")
	assert.Contains(t, out, "retired 2 old backup(s)")
	assert.Contains(t, out, "crm: dump FAILED (mysqldump was denied access)")
	assert.Contains(t, out, "Run:      f3a1c2")
}

func TestTelegramNotifier_Notify(t *testing.T) {
	var got telegramPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/bottoken123/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegramNotifier("token123", "chat-42")
	n.BaseURL = server.URL

	err := n.Notify(context.Background(), sampleSummary())
	assert.NoError(t, err)
	assert.Equal(t, "chat-42", got.ChatID)
	assert.Contains(t, got.Text, "shop: dumped")
}

func TestTelegramNotifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewTelegramNotifier("token123", "chat-42")
	n.BaseURL = server.URL

	assert.Error(t, n.Notify(context.Background(), sampleSummary()))
}

func TestTelegramNotifier_Disabled(t *testing.T) {
	n := NewTelegramNotifier("", "")
	assert.NoError(t, n.Notify(context.Background(), sampleSummary()))
}

func TestWebhookNotifier_DefaultPayload(t *testing.T) {
	var got Summary
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", "", map[string]string{"X-Token": "abc"})
	err := n.Notify(context.Background(), sampleSummary())
	assert.NoError(t, err)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Len(t, got.Databases, 2)
}

func TestWebhookNotifier_Template(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		body = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "PUT", `{"status":"{{.Status}}","took":"{{.FormattedDuration}}"}`, nil)
	err := n.Notify(context.Background(), sampleSummary())
	assert.NoError(t, err)
	assert.Contains(t, body, `"status":"partial"`)
	assert.Contains(t, body, `"took":"1m35s"`)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", "", nil)
	assert.Error(t, n.Notify(context.Background(), sampleSummary()))
}

func TestBuildNotifier(t *testing.T) {
	assert.Nil(t, BuildNotifier(config.Notifications{}, nil))

	single := BuildNotifier(config.Notifications{
		Telegram: config.Telegram{Enabled: true, BotToken: "t", ChatID: "c"},
	}, nil)
	_, ok := single.(*TelegramNotifier)
	assert.True(t, ok)

	multi := BuildNotifier(config.Notifications{
		Email:    config.Email{Enabled: true, Host: "smtp.internal", From: "a@b", To: []string{"ops@b"}},
		Telegram: config.Telegram{Enabled: true, BotToken: "t", ChatID: "c"},
		Webhooks: []config.Webhook{{URL: "https://hooks.internal/x"}},
	}, nil)
	m, ok := multi.(*MultiNotifier)
	require.True(t, ok)
	assert.Len(t, m.Notifiers, 3)
}
