// Package electionapi provides a client for the election platform backend.
package electionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
)

// Error codes used in structured error payloads. The backend and the
// simulator both emit these; the vote workflow classifies on them before
// falling back to message matching.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_ERROR"
	CodeAlreadyVoted   = "ALREADY_VOTED"
	CodeElectionClosed = "ELECTION_CLOSED"
	CodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError is a structured error response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// VoteResult is the backend's response to a successful vote submission.
type VoteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// voteRequest is the body for POST /api/voting/vote. RequestID lets the
// backend recognize a replayed submission.
type voteRequest struct {
	ElectionID   string `json:"electionId"`
	CandidateKey string `json:"candidateKey"`
	RequestID    string `json:"requestId,omitempty"`
}

// Client defines the interface for election backend operations
type Client interface {
	// GetElection retrieves one election's temporal window and status
	GetElection(ctx context.Context, electionID string) (*models.ElectionWindow, error)
	// ApprovedCandidates retrieves the approved ballot entries for an election
	ApprovedCandidates(ctx context.Context, electionID string) ([]models.CandidateOption, error)
	// CastVote submits a ballot for the given candidate
	CastVote(ctx context.Context, electionID, candidateKey, requestID string) (*VoteResult, error)
	// Notifications retrieves the notification snapshot for the current user
	Notifications(ctx context.Context) ([]models.NotificationEvent, error)
	// LiveURL returns the websocket endpoint for the live notification channel
	LiveURL() string
	// BaseURL returns the configured backend base URL
	BaseURL() string
}

// HTTPClient is a real HTTP client for the election backend
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new election backend client. The transport on
// httpClient is expected to attach the bearer token and intercept 401s
// (see session.Transport); pass nil to use a plain client.
func NewHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured backend base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// LiveURL returns the websocket endpoint for the live notification channel
func (c *HTTPClient) LiveURL() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/notification/live"
	return u.String()
}

// GetElection retrieves one election's temporal window and status
func (c *HTTPClient) GetElection(ctx context.Context, electionID string) (*models.ElectionWindow, error) {
	var window models.ElectionWindow
	if err := c.doGet(ctx, "/api/election/"+url.PathEscape(electionID), &window); err != nil {
		return nil, err
	}
	return &window, nil
}

// ApprovedCandidates retrieves the approved ballot entries for an election
func (c *HTTPClient) ApprovedCandidates(ctx context.Context, electionID string) ([]models.CandidateOption, error) {
	var candidates []models.CandidateOption
	path := "/api/election/" + url.PathEscape(electionID) + "/candidates/approved"
	if err := c.doGet(ctx, path, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// CastVote submits a ballot for the given candidate
func (c *HTTPClient) CastVote(ctx context.Context, electionID, candidateKey, requestID string) (*VoteResult, error) {
	body, err := json.Marshal(voteRequest{
		ElectionID:   electionID,
		CandidateKey: candidateKey,
		RequestID:    requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode vote request: %w", err)
	}

	reqURL := c.baseURL + "/api/voting/vote"
	c.log.Debug("Backend request", "method", "POST", "url", reqURL, "election_id", electionID, "request_id", requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Backend response", "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}

	var result VoteResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// Notifications retrieves the notification snapshot for the current user
func (c *HTTPClient) Notifications(ctx context.Context) ([]models.NotificationEvent, error) {
	var events []models.NotificationEvent
	if err := c.doGet(ctx, "/api/notification", &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Source = models.SourceSnapshot
	}
	return events, nil
}

// doGet executes a GET request and decodes the JSON response, converting
// non-200 statuses into *APIError
func (c *HTTPClient) doGet(ctx context.Context, path string, response interface{}) error {
	reqURL := c.baseURL + path
	c.log.Debug("Backend request", "method", "GET", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Backend response", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeAPIError parses a structured error payload, falling back to the
// raw body when the backend sent something unstructured
func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Code == "" && apiErr.Message == "") {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Code == "" && status == http.StatusUnauthorized {
		apiErr.Code = CodeUnauthorized
	}
	return apiErr
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
