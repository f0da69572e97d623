package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/titledesk/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the tracker API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements the TrackerClient interface over the tracker's REST API.
// Every call attaches the acting user's bearer secret, runs the one-shot
// refresh protocol on 401, and retries 429/5xx within the configured backoff
// budget before surfacing an error.
type Client struct {
	config     *ClientConfig
	tokens     integration.TokenProvider
	httpClient *http.Client
}

// NewClient creates a new tracker API client with the given configuration
func NewClient(config *ClientConfig, tokens integration.TokenProvider) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// validateID validates that a string is a well-formed numeric identifier
func validateID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s must not be empty", integration.ErrTrackerValidation, field)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %s %q is not a numeric identifier", integration.ErrTrackerValidation, field, id)
	}
	return nil
}

// parseID converts a validated numeric identifier to its wire form
func parseID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

// ---------------------------------------------------------------------------
// Project Operations
// ---------------------------------------------------------------------------

// ListProjects returns the projects visible to the user's account
func (c *Client) ListProjects(ctx context.Context, userID uuid.UUID) ([]integration.TrackerProject, error) {
	respBody, err := c.doRequest(ctx, userID, http.MethodGet, "/v1/projects", nil)
	if err != nil {
		return nil, err
	}

	var resp projectsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	projects := make([]integration.TrackerProject, 0, len(resp.Projects))
	for i := range resp.Projects {
		projects = append(projects, resp.Projects[i].toDomain())
	}
	return projects, nil
}

// GetProject returns one project including its board id
func (c *Client) GetProject(ctx context.Context, userID uuid.UUID, projectID string) (*integration.TrackerProject, error) {
	if err := validateID("project id", projectID); err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodGet, "/v1/projects/"+projectID, nil)
	if err != nil {
		return nil, err
	}

	var resp projectPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	project := resp.toDomain()
	return &project, nil
}

// ---------------------------------------------------------------------------
// List Operations
// ---------------------------------------------------------------------------

// ListLists returns the lists in a project
func (c *Client) ListLists(ctx context.Context, userID uuid.UUID, projectID string) ([]integration.TrackerList, error) {
	if err := validateID("project id", projectID); err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodGet, "/v1/projects/"+projectID+"/lists", nil)
	if err != nil {
		return nil, err
	}

	var resp listsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	lists := make([]integration.TrackerList, 0, len(resp.Lists))
	for i := range resp.Lists {
		lists = append(lists, resp.Lists[i].toDomain())
	}
	return lists, nil
}

// CreateList creates a list under the project's board. Before issuing the
// create it lists existing lists and compares normalized names; a match
// surfaces ErrDuplicateList and no create request is sent.
func (c *Client) CreateList(ctx context.Context, userID uuid.UUID, req integration.CreateListRequest) (*integration.TrackerList, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := c.ListLists(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	want := normalizeListName(req.Name)
	for _, list := range existing {
		if normalizeListName(list.Name) == want {
			return nil, fmt.Errorf("%w: %q", integration.ErrDuplicateList, req.Name)
		}
	}

	payload := createListPayload{Name: req.Name, Description: req.Description}
	respBody, err := c.doRequest(ctx, userID, http.MethodPost, "/v1/boards/"+req.BoardID+"/lists", payload)
	if err != nil {
		return nil, err
	}

	var resp listPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	list := resp.toDomain()
	return &list, nil
}

// normalizeListName prepares a list name for duplicate comparison: Unicode
// NFC fold, collapse whitespace runs to single spaces, trim. Comparison
// stays case-sensitive.
func normalizeListName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// ---------------------------------------------------------------------------
// Group Operations
// ---------------------------------------------------------------------------

// ListGroups returns the groups in a list
func (c *Client) ListGroups(ctx context.Context, userID uuid.UUID, listID string) ([]integration.TrackerGroup, error) {
	if err := validateID("list id", listID); err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodGet, "/v1/lists/"+listID+"/groups", nil)
	if err != nil {
		return nil, err
	}

	var resp groupsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	groups := make([]integration.TrackerGroup, 0, len(resp.Groups))
	for i := range resp.Groups {
		groups = append(groups, resp.Groups[i].toDomain())
	}
	return groups, nil
}

// CreateGroup creates a named group inside a list
func (c *Client) CreateGroup(ctx context.Context, userID uuid.UUID, req integration.CreateGroupRequest) (*integration.TrackerGroup, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := createGroupPayload{Name: req.Name}
	respBody, err := c.doRequest(ctx, userID, http.MethodPost, "/v1/lists/"+req.ListID+"/groups", payload)
	if err != nil {
		return nil, err
	}

	var resp groupPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	group := resp.toDomain()
	return &group, nil
}

// ---------------------------------------------------------------------------
// Task Operations
// ---------------------------------------------------------------------------

// CreateTask creates a task inside a list, optionally inside a group
func (c *Client) CreateTask(ctx context.Context, userID uuid.UUID, req integration.CreateTaskRequest) (*integration.TrackerTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := createTaskPayload{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.GroupID != "" {
		payload.GroupID = parseID(req.GroupID)
	}
	for _, id := range req.AssigneeIDs {
		payload.AssigneeIDs = append(payload.AssigneeIDs, parseID(id))
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodPost, "/v1/lists/"+req.ListID+"/tasks", payload)
	if err != nil {
		return nil, err
	}

	var resp taskPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	task := resp.toDomain()
	return &task, nil
}

// UpdateTask partially updates an existing task
func (c *Client) UpdateTask(ctx context.Context, userID uuid.UUID, req integration.UpdateTaskRequest) (*integration.TrackerTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := updateTaskPayload{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.GroupID != nil && *req.GroupID != "" {
		groupID := parseID(*req.GroupID)
		payload.GroupID = &groupID
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodPatch, "/v1/tasks/"+req.TaskID, payload)
	if err != nil {
		return nil, err
	}

	var resp taskPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	task := resp.toDomain()
	return &task, nil
}

// ---------------------------------------------------------------------------
// Comment Operations
// ---------------------------------------------------------------------------

// AddComment adds a comment to a task or a list
func (c *Client) AddComment(ctx context.Context, userID uuid.UUID, req integration.AddCommentRequest) (*integration.TrackerComment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	path := "/v1/tasks/" + req.TaskID + "/comments"
	if req.ListID != "" {
		path = "/v1/lists/" + req.ListID + "/comments"
	}

	respBody, err := c.doRequest(ctx, userID, http.MethodPost, path, addCommentPayload{Text: req.Text})
	if err != nil {
		return nil, err
	}

	var resp commentPayload
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrTrackerTransient, err)
	}

	return &integration.TrackerComment{ID: strconv.FormatInt(resp.ID, 10)}, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an HTTP request to the tracker API, driving the auth
// and retry protocols. 401 triggers one token refresh and one resend; 429
// and 5xx retry within their backoff budgets; remaining 4xx are terminal.
func (c *Client) doRequest(ctx context.Context, userID uuid.UUID, method, path string, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("tracker: failed to marshal request: %w", err)
		}
	}

	secret, err := c.tokens.AccessSecret(ctx, userID)
	if err != nil {
		return nil, err
	}

	rateLimitBackoff := c.config.RateLimit.NewBackOff()
	serverErrorBackoff := c.config.ServerError.NewBackOff()
	rateLimitRetries := 0
	serverErrorRetries := 0
	refreshed := false

	for {
		respBody, status, retryAfter, err := c.send(ctx, method, path, secret, bodyBytes)
		if err != nil {
			// Transport failures are treated like server errors
			if serverErrorRetries >= c.config.ServerError.MaxRetries {
				return nil, fmt.Errorf("%w: %v", integration.ErrTrackerTransient, err)
			}
			serverErrorRetries++
			if err := sleep(ctx, serverErrorBackoff.NextBackOff()); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case status < 400:
			return respBody, nil

		case status == http.StatusUnauthorized:
			if refreshed {
				return nil, integration.ErrReauthRequired
			}
			refreshed = true
			secret, err = c.tokens.RefreshAccessSecret(ctx, userID)
			if err != nil {
				return nil, err
			}

		case status == http.StatusTooManyRequests:
			if rateLimitRetries >= c.config.RateLimit.MaxRetries {
				return nil, fmt.Errorf("%w: HTTP %d", integration.ErrTrackerTransient, status)
			}
			rateLimitRetries++
			delay := rateLimitBackoff.NextBackOff()
			if retryAfter > 0 {
				delay = retryAfter
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}

		case status >= 500:
			if serverErrorRetries >= c.config.ServerError.MaxRetries {
				return nil, fmt.Errorf("%w: HTTP %d", integration.ErrTrackerTransient, status)
			}
			serverErrorRetries++
			if err := sleep(ctx, serverErrorBackoff.NextBackOff()); err != nil {
				return nil, err
			}

		default:
			// 403, 404, 422 and other client errors are never retried
			return nil, terminalError(status, respBody)
		}
	}
}

// send performs one HTTP exchange and reports the rate-limit hint, if any
func (c *Client) send(ctx context.Context, method, path, secret string, body []byte) ([]byte, int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("tracker: failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("tracker: failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, retryAfterHint(resp, respBody), nil
}

// retryAfterHint extracts the server's rate-limit hint from the Retry-After
// header or the error body. Zero means no hint.
func retryAfterHint(resp *http.Response, body []byte) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.ParseInt(header, 10, 64); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.RetryAfter > 0 {
			return time.Duration(envelope.Error.RetryAfter) * time.Second
		}
	}
	return 0
}

// terminalError builds the error for a non-retryable tracker rejection
func terminalError(status int, body []byte) error {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return fmt.Errorf("%w: HTTP %d %s - %s", integration.ErrTrackerTerminal, status, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("%w: HTTP %d", integration.ErrTrackerTerminal, status)
}

// sleep waits out a backoff delay, aborting early when the context ends
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Client implements TrackerClient interface
var _ integration.TrackerClient = (*Client)(nil)
