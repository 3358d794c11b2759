package transcription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Offline task statuses from the vendor's query_task response (spec §6:
// "Offline ASR: file upload then status poll until terminal status").
// "9" is success; "3" and "4" are terminal failures; anything else means
// the task is still processing.
const (
	offlineStatusSuccess = "9"
	offlineStatusFailedA = "3"
	offlineStatusFailedB = "4"
)

// offlinePollInterval and offlinePollTimeout bound the status-poll loop.
// Declared as vars (not const) so tests can shrink the interval instead
// of waiting out a real 10s cadence.
var (
	offlinePollInterval = 10 * time.Second
	offlinePollTimeout  = 5 * time.Minute
)

// OfflineConfig configures an OfflineClient against the vendor's
// create/query REST endpoints.
type OfflineConfig struct {
	CreateURL, QueryURL string
	AppID, APIKey       string
	HTTPClient          *http.Client
}

// OfflineClient is the non-streaming counterpart to Client (spec §6): it
// uploads a finished audio file and polls for a transcript rather than
// streaming PCM frames over a WebSocket, for callers that already have a
// recorded clip (e.g. a re-transcription pass over a stored answer clip)
// instead of a live microphone feed.
type OfflineClient struct {
	cfg OfflineConfig
}

// NewOfflineClient constructs an OfflineClient.
func NewOfflineClient(cfg OfflineConfig) *OfflineClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &OfflineClient{cfg: cfg}
}

// offlineResponse is the loosely typed shape shared by the create and
// query endpoints: a task_id/task_status pair nested under "data", with
// the final transcript nested under data.result.text once status is
// offlineStatusSuccess.
type offlineResponse struct {
	Data struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Result     struct {
			Text string `json:"text"`
		} `json:"result"`
	} `json:"data"`
}

// Transcribe uploads the audio file at path, then polls until the vendor
// reports a terminal status, returning the concatenated transcript.
// Bounded by offlinePollTimeout via wait.PollUntilContextTimeout rather
// than a hand-rolled sleep loop.
func (c *OfflineClient) Transcribe(ctx context.Context, audioURL string) (string, error) {
	taskID, err := c.createTask(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("transcription: offline create task: %w", err)
	}

	var transcript string
	pollErr := wait.PollUntilContextTimeout(ctx, offlinePollInterval, offlinePollTimeout, true, func(ctx context.Context) (bool, error) {
		resp, err := c.queryTask(ctx, taskID)
		if err != nil {
			return false, err
		}
		switch resp.Data.TaskStatus {
		case offlineStatusSuccess:
			transcript = resp.Data.Result.Text
			return true, nil
		case offlineStatusFailedA, offlineStatusFailedB:
			return false, fmt.Errorf("transcription: offline task %s reported failure status %s", taskID, resp.Data.TaskStatus)
		default:
			return false, nil
		}
	})
	if pollErr != nil {
		return "", fmt.Errorf("transcription: offline poll: %w", pollErr)
	}
	return transcript, nil
}

func (c *OfflineClient) createTask(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"common":   map[string]string{"app_id": c.cfg.AppID},
		"business": map[string]string{"audio_src": "http"},
		"data": map[string]string{
			"audio_src": "http",
			"audio_url": audioURL,
			"encoding":  "raw",
		},
	})

	var resp offlineResponse
	if err := c.call(ctx, c.cfg.CreateURL, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.TaskID == "" {
		return "", fmt.Errorf("transcription: offline create task: no task_id in response")
	}
	return resp.Data.TaskID, nil
}

func (c *OfflineClient) queryTask(ctx context.Context, taskID string) (offlineResponse, error) {
	body, _ := json.Marshal(map[string]any{
		"common":   map[string]string{"app_id": c.cfg.AppID},
		"business": map[string]string{"task_id": taskID},
	})

	var resp offlineResponse
	err := c.call(ctx, c.cfg.QueryURL, body, &resp)
	return resp, err
}

// call signs body with HMAC-SHA1 the same way Sign does for the
// streaming socket (simplified sibling of credentials.signRequest, per
// sign.go's own grounding note — here applied to a POST body digest
// instead of a connect-URL query string) and POSTs it to endpoint.
func (c *OfflineClient) call(ctx context.Context, endpoint string, body []byte, out any) error {
	timestamp := time.Now().Unix()
	sig := Sign(c.cfg.AppID, c.cfg.APIKey, timestamp)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", c.cfg.AppID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Signature", sig)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription: offline request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("transcription: offline read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcription: offline request: HTTP %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("transcription: offline decode response: %w", err)
	}
	return nil
}

// UploadFile reads a local clip and returns a data URL the offline
// vendor's audio_url field can address, for deployments with no
// separately reachable object-store URL for the clip (the default, per
// spec §4.C: clips are written to local disk, not uploaded to storage).
func UploadFile(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is the operator-configured clip root
	if err != nil {
		return "", fmt.Errorf("transcription: offline upload: %w", err)
	}
	mime := "audio/wav"
	if ext := filepath.Ext(path); ext == ".mp4" {
		mime = "video/mp4"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
