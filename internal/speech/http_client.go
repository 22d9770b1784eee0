package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client calls the speech platform's HTTP endpoints. One client covers all
// three services plus the asset store; each has its own base URL so they can
// be deployed separately.
type Client struct {
	TranscribeURL string
	TransformURL  string
	SynthURL      string
	AssetStoreURL string
	APIKey        string
	HTTPClient    *http.Client
}

// NewClient returns a client for the given endpoints. Any URL may be empty;
// calls against an empty endpoint fail with a configuration error.
func NewClient(transcribeURL, transformURL, synthURL, assetStoreURL, apiKey string) *Client {
	return &Client{
		TranscribeURL: transcribeURL,
		TransformURL:  transformURL,
		SynthURL:      synthURL,
		AssetStoreURL: assetStoreURL,
		APIKey:        apiKey,
		HTTPClient:    &http.Client{Timeout: defaultTimeout},
	}
}

// Transcribe sends audio bytes to the speech-to-text service and returns the text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.TranscribeURL == "" {
		return "", fmt.Errorf("speech: transcribe URL not configured")
	}
	body := map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)}
	var out struct {
		Text string `json:"text"`
	}
	if err := c.postJSON(ctx, c.TranscribeURL, body, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Transform sends belief text to the transformation service and returns the
// normalized belief and affirmation phrasing.
func (c *Client) Transform(ctx context.Context, beliefText string) (*Transformation, error) {
	if c.TransformURL == "" {
		return nil, fmt.Errorf("speech: transform URL not configured")
	}
	body := map[string]string{"belief": beliefText}
	var out Transformation
	if err := c.postJSON(ctx, c.TransformURL, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Synthesize renders text with the given voice and returns the stored audio URL.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (string, error) {
	if c.SynthURL == "" {
		return "", fmt.Errorf("speech: synth URL not configured")
	}
	body := map[string]string{"text": text, "voice": voice}
	var out struct {
		AudioURL string `json:"audio_url"`
	}
	if err := c.postJSON(ctx, c.SynthURL, body, &out); err != nil {
		return "", err
	}
	return out.AudioURL, nil
}

// Store uploads raw audio bytes to the asset store and returns their URL.
func (c *Client) Store(ctx context.Context, audio []byte) (string, error) {
	if c.AssetStoreURL == "" {
		return "", fmt.Errorf("speech: asset store URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AssetStoreURL, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("speech: store failed status=%d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("speech: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
