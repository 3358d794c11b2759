package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineClient_Transcribe_PollsUntilSuccess(t *testing.T) {
	var queries int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"task_id": "task-1"},
			})
		case "/query":
			queries++
			status := "2"
			text := ""
			if queries >= 2 {
				status = offlineStatusSuccess
				text = "候选人回答了这个问题"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"task_id":     "task-1",
					"task_status": status,
					"result":      map[string]string{"text": text},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewOfflineClient(OfflineConfig{
		CreateURL: server.URL + "/create",
		QueryURL:  server.URL + "/query",
		AppID:     "app-1",
		APIKey:    "secret",
	})

	origInterval := offlinePollInterval
	offlinePollInterval = 10 * time.Millisecond
	defer func() { offlinePollInterval = origInterval }()

	text, err := client.Transcribe(context.Background(), "https://media.example.com/clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "候选人回答了这个问题", text)
	assert.GreaterOrEqual(t, queries, 2)
}

func TestOfflineClient_Transcribe_FailureStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"task_id": "task-2"}})
		case "/query":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"task_id": "task-2", "task_status": offlineStatusFailedA},
			})
		}
	}))
	defer server.Close()

	client := NewOfflineClient(OfflineConfig{
		CreateURL: server.URL + "/create",
		QueryURL:  server.URL + "/query",
		AppID:     "app-1",
		APIKey:    "secret",
	})
	origInterval := offlinePollInterval
	offlinePollInterval = 10 * time.Millisecond
	defer func() { offlinePollInterval = origInterval }()

	_, err := client.Transcribe(context.Background(), "https://media.example.com/clip.wav")
	assert.Error(t, err)
}

func TestOfflineClient_Transcribe_CreateTaskMissingIDIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer server.Close()

	client := NewOfflineClient(OfflineConfig{
		CreateURL: server.URL,
		QueryURL:  server.URL,
		AppID:     "app-1",
		APIKey:    "secret",
	})

	_, err := client.Transcribe(context.Background(), "https://media.example.com/clip.wav")
	assert.Error(t, err)
}

func TestUploadFile_EncodesAsDataURL(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/clip.wav"
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644))

	dataURL, err := UploadFile(path)
	require.NoError(t, err)
	assert.Contains(t, dataURL, "data:audio/wav;base64,")
}

func TestUploadFile_MissingFileIsError(t *testing.T) {
	_, err := UploadFile("/nonexistent/clip.wav")
	assert.Error(t, err)
}
