package tracker

import (
	"strconv"

	"github.com/titledesk/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Common Tracker API Response Types
// ---------------------------------------------------------------------------

// errorBody is the error envelope returned by the tracker API
type errorBody struct {
	Error *errorInfo `json:"error,omitempty"`
}

// errorInfo carries the tracker's error details
type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RetryAfter is a rate-limit hint in seconds, mirrored in the
	// Retry-After header
	RetryAfter int64 `json:"retry_after,omitempty"`
}

// ---------------------------------------------------------------------------
// Resource Payloads
// ---------------------------------------------------------------------------

// projectsResponse is the response for GET /v1/projects
type projectsResponse struct {
	Projects []projectPayload `json:"projects"`
}

// projectPayload represents a project. The board sub-resource is only
// populated on single-project fetches.
type projectPayload struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Board *boardPayload `json:"board,omitempty"`
}

// boardPayload is the board sub-resource lists are created under
type boardPayload struct {
	ID int64 `json:"id"`
}

func (p *projectPayload) toDomain() integration.TrackerProject {
	project := integration.TrackerProject{
		ID:   strconv.FormatInt(p.ID, 10),
		Name: p.Name,
	}
	if p.Board != nil {
		project.BoardID = strconv.FormatInt(p.Board.ID, 10)
	}
	return project
}

// listsResponse is the response for GET /v1/projects/{id}/lists
type listsResponse struct {
	Lists []listPayload `json:"lists"`
}

// listPayload represents a list under a project's board
type listPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

func (p *listPayload) toDomain() integration.TrackerList {
	return integration.TrackerList{
		ID:   strconv.FormatInt(p.ID, 10),
		Name: p.Name,
		URL:  p.URL,
	}
}

// groupsResponse is the response for GET /v1/lists/{id}/groups
type groupsResponse struct {
	Groups []groupPayload `json:"groups"`
}

// groupPayload represents a named section inside a list
type groupPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (p *groupPayload) toDomain() integration.TrackerGroup {
	return integration.TrackerGroup{
		ID:   strconv.FormatInt(p.ID, 10),
		Name: p.Name,
	}
}

// taskPayload represents a task inside a list
type taskPayload struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
}

func (p *taskPayload) toDomain() integration.TrackerTask {
	task := integration.TrackerTask{
		ID:   strconv.FormatInt(p.ID, 10),
		Name: p.Name,
		URL:  p.URL,
	}
	if p.GroupID != 0 {
		task.GroupID = strconv.FormatInt(p.GroupID, 10)
	}
	return task
}

// commentPayload represents a created comment
type commentPayload struct {
	ID int64 `json:"id"`
}

// ---------------------------------------------------------------------------
// Request Payloads
// ---------------------------------------------------------------------------

// createListPayload is the body for POST /v1/boards/{boardId}/lists
type createListPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// createGroupPayload is the body for POST /v1/lists/{id}/groups
type createGroupPayload struct {
	Name string `json:"name"`
}

// createTaskPayload is the body for POST /v1/lists/{id}/tasks
type createTaskPayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"due_date,omitempty"`
	GroupID     int64   `json:"group_id,omitempty"`
	AssigneeIDs []int64 `json:"assignee_ids,omitempty"`
}

// updateTaskPayload is the body for PATCH /v1/tasks/{id}. Nil fields are
// omitted so the tracker leaves them unchanged.
type updateTaskPayload struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
}

// addCommentPayload is the body for the comment endpoints
type addCommentPayload struct {
	Text string `json:"text"`
}
