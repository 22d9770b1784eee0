package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "", "", "", "key")
	if c.HTTPClient == nil {
		t.Fatal("HTTPClient should be set")
	}
	if c.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.HTTPClient.Timeout, defaultTimeout)
	}
}

func TestTranscribe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["audio"] == "" {
			t.Error("audio payload missing")
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "Money is scarce"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", "", "", "test-key")
	text, err := c.Transcribe(context.Background(), []byte("fake-audio"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Money is scarce" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribe_Unconfigured(t *testing.T) {
	c := NewClient("", "", "", "", "")
	if _, err := c.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Fatal("Transcribe without a URL should fail")
	}
}

func TestTransform_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient("", server.URL, "", "", "")
	if _, err := c.Transform(context.Background(), "Money is scarce"); err == nil {
		t.Fatal("Transform should surface a non-200 response as an error")
	}
}

func TestSynthesize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["voice"] != "calm-female-1" {
			t.Errorf("voice = %q", body["voice"])
		}
		json.NewEncoder(w).Encode(map[string]string{"audio_url": "https://assets/audio/1.mp3"})
	}))
	defer server.Close()

	c := NewClient("", "", server.URL, "", "")
	url, err := c.Synthesize(context.Background(), "I attract abundance", "calm-female-1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if url != "https://assets/audio/1.mp3" {
		t.Errorf("url = %q", url)
	}
}

func TestStore_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://assets/raw/2.wav"})
	}))
	defer server.Close()

	c := NewClient("", "", "", server.URL, "")
	url, err := c.Store(context.Background(), []byte("wav-bytes"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if url != "https://assets/raw/2.wav" {
		t.Errorf("url = %q", url)
	}
}
