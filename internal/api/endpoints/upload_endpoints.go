package endpoints

import (
	"fmt"
	"net/http"

	"automate-chat/internal/api"
	"automate-chat/internal/dto"
	internaljwt "automate-chat/internal/jwt"
	"automate-chat/internal/media"
)

type UploadEndpoints interface {
	Uploads(http.ResponseWriter, *http.Request) error
}

type uploadEndpoints struct {
	uploader      *media.Uploader
	parseIdentity func(string) (internaljwt.Identity, error)
}

func NewUploadEndpoints(uploader *media.Uploader) UploadEndpoints {
	return &uploadEndpoints{
		uploader:      uploader,
		parseIdentity: internaljwt.ParseIdentity,
	}
}

func (h *uploadEndpoints) Uploads(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleUpload,
	})
}

// handleUpload relays the attachment to the media host and hands the public
// URL back to the composer.
func (h *uploadEndpoints) handleUpload(w http.ResponseWriter, r *http.Request) error {
	token := ExtractTokenFromHeaders(r)
	if token == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Missing token",
			ErrorLog:   fmt.Errorf("upload authorization header missing"),
		}
	}
	if _, err := h.parseIdentity(token); err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("upload token rejected: %w", err),
		}
	}

	if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid multipart payload",
			ErrorLog:   fmt.Errorf("parse upload form: %w", err),
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Missing file field",
			ErrorLog:   fmt.Errorf("upload form file: %w", err),
		}
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadGateway,
			Message:    "Upload failed",
			ErrorLog:   fmt.Errorf("media relay: %w", err),
		}
	}

	return api.WriteJSON(w, http.StatusCreated, dto.UploadResponse{URL: url})
}
