package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"automate-chat/internal/dto"
	"automate-chat/internal/wire"
)

// RestClient is the REST collaborator surface the session engine depends on.
// The production implementation talks to the api-server; tests supply fakes.
type RestClient interface {
	ListConversations(ctx context.Context) ([]dto.Conversation, error)
	ListFallbackUsers(ctx context.Context) ([]dto.FallbackUser, error)
	StartConversation(ctx context.Context, customerID, workshopID string) (dto.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]wire.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
}

type HTTPRestClient struct {
	baseURL    string
	token      string
	role       string
	httpClient *http.Client
}

func NewHTTPRestClient(baseURL, token, role string) *HTTPRestClient {
	return &HTTPRestClient{
		baseURL:    baseURL,
		token:      token,
		role:       role,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPRestClient) ListConversations(ctx context.Context) ([]dto.Conversation, error) {
	var res dto.ListConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res.Conversations, nil
}

func (c *HTTPRestClient) ListFallbackUsers(ctx context.Context) ([]dto.FallbackUser, error) {
	var res dto.ListFallbackUsersResponse
	if err := c.do(ctx, http.MethodGet, "/users/fallback", nil, &res); err != nil {
		return nil, err
	}
	return res.Users, nil
}

func (c *HTTPRestClient) StartConversation(ctx context.Context, customerID, workshopID string) (dto.Conversation, error) {
	req := dto.StartConversationRequest{CustomerID: customerID, WorkshopID: workshopID}
	var res dto.StartConversationResponse
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &res); err != nil {
		return dto.Conversation{}, err
	}
	return res.Conversation, nil
}

func (c *HTTPRestClient) ListMessages(ctx context.Context, conversationID string) ([]wire.Message, error) {
	var res dto.ListMessagesResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (c *HTTPRestClient) MarkRead(ctx context.Context, conversationID string) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/read"
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

func (c *HTTPRestClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest %s %s: marshal body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path + "?role=" + url.QueryEscape(c.role)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("rest %s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return fmt.Errorf("rest %s %s: status %d: %s", method, path, res.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("rest %s %s: decode response: %w", method, path, err)
	}
	return nil
}
