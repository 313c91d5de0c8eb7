package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadSendsMultipartAndReturnsURL(t *testing.T) {
	var gotAuth string
	var gotFilename string
	var gotContent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename

		buf := make([]byte, header.Size)
		n, _ := file.Read(buf)
		gotContent = string(buf[:n])

		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/img/abc.png"})
	}))
	defer server.Close()

	uploader := NewUploaderWith(server.URL, "test-key", server.Client())

	url, err := uploader.Upload(context.Background(), "damage-photo.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if url != "https://cdn.example.com/img/abc.png" {
		t.Errorf("got url %q", url)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("got auth header %q", gotAuth)
	}
	if gotFilename != "damage-photo.png" {
		t.Errorf("got filename %q", gotFilename)
	}
	if gotContent != "png-bytes" {
		t.Errorf("got content %q", gotContent)
	}
}

func TestUploadRejectsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	uploader := NewUploaderWith(server.URL, "", server.Client())

	if _, err := uploader.Upload(context.Background(), "a.png", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the service")
	}))
	defer server.Close()

	uploader := NewUploaderWith(server.URL, "", server.Client())

	big := strings.NewReader(strings.Repeat("a", MaxUploadBytes+1))
	if _, err := uploader.Upload(context.Background(), "big.png", big); err == nil {
		t.Fatal("expected error for oversized file")
	}
}
