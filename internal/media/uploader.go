// Package media forwards chat attachments to the external media service and
// hands back the public URL stored on the message.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"automate-chat/internal/env"
)

// Attachments above this size are rejected before we buffer anything.
const MaxUploadBytes = 10 << 20

type Uploader struct {
	uploadURL  string
	apiKey     string
	httpClient *http.Client
}

func NewUploader() *Uploader {
	return &Uploader{
		uploadURL:  env.Get(env.MediaUploadURL),
		apiKey:     env.Get(env.MediaAPIKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func NewUploaderWith(uploadURL, apiKey string, client *http.Client) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Uploader{
		uploadURL:  uploadURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

type uploadResult struct {
	URL string `json:"url"`
}

// Upload streams the file to the media service as a multipart form and
// returns the hosted URL. The caller keeps ownership of the reader.
func (u *Uploader) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if u.uploadURL == "" {
		return "", fmt.Errorf("media upload: no upload URL configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("media upload: create form file: %w", err)
	}
	written, err := io.Copy(part, io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("media upload: read file: %w", err)
	}
	if written > MaxUploadBytes {
		return "", fmt.Errorf("media upload: file exceeds %d bytes", MaxUploadBytes)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("media upload: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("media upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	res, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return "", fmt.Errorf("media upload: service returned %d: %s", res.StatusCode, snippet)
	}

	var result uploadResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("media upload: decode response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("media upload: service returned no url")
	}
	return result.URL, nil
}
