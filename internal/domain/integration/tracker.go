package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Tracker configuration and authorization errors
var (
	// ErrTrackerNotConfigured indicates provider credentials or the destination
	// project mapping are missing for the requested operation
	ErrTrackerNotConfigured = errors.New("integration: tracker not configured")
	// ErrAuthorizationFailed indicates the authorization flow could not
	// complete (zero candidate accounts, invalid state token, exchange failure)
	ErrAuthorizationFailed = errors.New("integration: tracker authorization failed")
	// ErrReauthRequired indicates the stored authorization is no longer usable
	// and the user has to reconnect the tracker account
	ErrReauthRequired = errors.New("integration: tracker authorization expired, reconnect required")
)

// Tracker API errors
var (
	// ErrTrackerValidation indicates a request failed local validation before
	// any network call was made
	ErrTrackerValidation = errors.New("integration: tracker request validation failed")
	// ErrTrackerTransient indicates a rate-limit or server-side failure that
	// persisted through the retry policy
	ErrTrackerTransient = errors.New("integration: tracker temporarily unavailable")
	// ErrTrackerTerminal indicates the tracker rejected the request in a way
	// that retrying cannot fix (403, 404, 422)
	ErrTrackerTerminal = errors.New("integration: tracker rejected the request")
	// ErrDuplicateList indicates a list with the same normalized name already
	// exists in the destination project
	ErrDuplicateList = errors.New("integration: list name already exists in project")
)

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

const (
	// MaxNameLength bounds list, group, and task names
	MaxNameLength = 255
	// MaxDescriptionLength bounds descriptions and comment bodies
	MaxDescriptionLength = 4000
	// DueDateLayout is the calendar format the tracker accepts for due dates
	DueDateLayout = "2006-01-02"
)

func validateName(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrTrackerValidation, field)
	}
	if len(value) > MaxNameLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrTrackerValidation, field, MaxNameLength)
	}
	return nil
}

func validateDescription(field, value string) error {
	if len(value) > MaxDescriptionLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrTrackerValidation, field, MaxDescriptionLength)
	}
	return nil
}

func validateDueDate(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(DueDateLayout, value); err != nil {
		return fmt.Errorf("%w: due date %q is not a valid YYYY-MM-DD date", ErrTrackerValidation, value)
	}
	return nil
}

func validateNumericID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrTrackerValidation, field)
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("%w: %s %q is not a numeric identifier", ErrTrackerValidation, field, value)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tracker Resources
// ---------------------------------------------------------------------------

// TrackerProject is a top-level project in the external tracker
type TrackerProject struct {
	// ID is the tracker-assigned project identifier
	ID string
	// Name is the project display name
	Name string
	// BoardID is the board sub-resource lists are created under
	BoardID string
}

// TrackerList is a list created under a project's board
type TrackerList struct {
	// ID is the tracker-assigned list identifier
	ID string
	// Name is the list display name
	Name string
	// URL is the tracker's web link to the list
	URL string
}

// TrackerGroup is a named section inside a list
type TrackerGroup struct {
	// ID is the tracker-assigned group identifier
	ID string
	// Name is the group display name
	Name string
}

// TrackerTask is a task inside a list, optionally inside a group
type TrackerTask struct {
	// ID is the tracker-assigned task identifier
	ID string
	// Name is the task display name
	Name string
	// URL is the tracker's web link to the task
	URL string
	// GroupID is the containing group, empty when ungrouped
	GroupID string
}

// TrackerComment is a comment on a task or a list
type TrackerComment struct {
	// ID is the tracker-assigned comment identifier
	ID string
}

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// CreateListRequest creates a list under a project's board
type CreateListRequest struct {
	// ProjectID is the destination project (used for the duplicate check)
	ProjectID string
	// BoardID is the board sub-resource exposed by the project
	BoardID string
	// Name is the list name
	Name string
	// Description is optional
	Description string
}

// Validate validates the request before any network call
func (r *CreateListRequest) Validate() error {
	if err := validateNumericID("project id", r.ProjectID); err != nil {
		return err
	}
	if err := validateNumericID("board id", r.BoardID); err != nil {
		return err
	}
	if err := validateName("list name", r.Name); err != nil {
		return err
	}
	return validateDescription("list description", r.Description)
}

// CreateGroupRequest creates a named group inside a list
type CreateGroupRequest struct {
	// ListID is the containing list
	ListID string
	// Name is the group name
	Name string
}

// Validate validates the request before any network call
func (r *CreateGroupRequest) Validate() error {
	if err := validateNumericID("list id", r.ListID); err != nil {
		return err
	}
	return validateName("group name", r.Name)
}

// CreateTaskRequest creates a task inside a list, optionally inside a group
type CreateTaskRequest struct {
	// ListID is the containing list
	ListID string
	// GroupID is the containing group, empty for an ungrouped task
	GroupID string
	// Name is the task name
	Name string
	// Description is optional
	Description string
	// DueDate is an optional YYYY-MM-DD date
	DueDate string
	// AssigneeIDs are optional tracker user identifiers
	AssigneeIDs []string
}

// Validate validates the request before any network call
func (r *CreateTaskRequest) Validate() error {
	if err := validateNumericID("list id", r.ListID); err != nil {
		return err
	}
	if r.GroupID != "" {
		if err := validateNumericID("group id", r.GroupID); err != nil {
			return err
		}
	}
	if err := validateName("task name", r.Name); err != nil {
		return err
	}
	if err := validateDescription("task description", r.Description); err != nil {
		return err
	}
	if err := validateDueDate(r.DueDate); err != nil {
		return err
	}
	for _, id := range r.AssigneeIDs {
		if err := validateNumericID("assignee id", id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTaskRequest partially updates an existing task. Nil fields are left
// unchanged.
type UpdateTaskRequest struct {
	// TaskID is the task to update
	TaskID string
	// Name replaces the task name when set
	Name *string
	// Description replaces the description when set
	Description *string
	// DueDate replaces the due date when set (YYYY-MM-DD, empty clears it)
	DueDate *string
	// GroupID moves the task into a group when set
	GroupID *string
}

// Validate validates the request before any network call
func (r *UpdateTaskRequest) Validate() error {
	if err := validateNumericID("task id", r.TaskID); err != nil {
		return err
	}
	if r.Name == nil && r.Description == nil && r.DueDate == nil && r.GroupID == nil {
		return fmt.Errorf("%w: update requires at least one field", ErrTrackerValidation)
	}
	if r.Name != nil {
		if err := validateName("task name", *r.Name); err != nil {
			return err
		}
	}
	if r.Description != nil {
		if err := validateDescription("task description", *r.Description); err != nil {
			return err
		}
	}
	if r.DueDate != nil && *r.DueDate != "" {
		if err := validateDueDate(*r.DueDate); err != nil {
			return err
		}
	}
	if r.GroupID != nil && *r.GroupID != "" {
		if err := validateNumericID("group id", *r.GroupID); err != nil {
			return err
		}
	}
	return nil
}

// AddCommentRequest adds a comment to exactly one of a task or a list
type AddCommentRequest struct {
	// TaskID targets a task when set
	TaskID string
	// ListID targets a list when set
	ListID string
	// Text is the comment body
	Text string
}

// Validate validates the request before any network call
func (r *AddCommentRequest) Validate() error {
	if (r.TaskID == "") == (r.ListID == "") {
		return fmt.Errorf("%w: comment requires exactly one of task id or list id", ErrTrackerValidation)
	}
	if r.TaskID != "" {
		if err := validateNumericID("task id", r.TaskID); err != nil {
			return err
		}
	}
	if r.ListID != "" {
		if err := validateNumericID("list id", r.ListID); err != nil {
			return err
		}
	}
	if r.Text == "" {
		return fmt.Errorf("%w: comment text must not be empty", ErrTrackerValidation)
	}
	return validateDescription("comment text", r.Text)
}

// ---------------------------------------------------------------------------
// TrackerClient Interface
// ---------------------------------------------------------------------------

// TrackerClient defines the port interface for the external task tracker.
// Adapters attach the acting user's access secret to every call, run the
// one-shot refresh protocol on 401, and absorb transient failures through
// the bounded retry policy before surfacing errors.
type TrackerClient interface {
	// ListProjects returns the projects visible to the user's account
	ListProjects(ctx context.Context, userID uuid.UUID) ([]TrackerProject, error)

	// GetProject returns one project including the board id needed to
	// create lists
	GetProject(ctx context.Context, userID uuid.UUID, projectID string) (*TrackerProject, error)

	// ListLists returns the lists in a project
	ListLists(ctx context.Context, userID uuid.UUID, projectID string) ([]TrackerList, error)

	// CreateList creates a list under the project's board. It checks the
	// candidate name against existing list names (whitespace-normalized,
	// case-sensitive) and returns ErrDuplicateList before issuing the create
	// when a match exists.
	CreateList(ctx context.Context, userID uuid.UUID, req CreateListRequest) (*TrackerList, error)

	// ListGroups returns the groups in a list
	ListGroups(ctx context.Context, userID uuid.UUID, listID string) ([]TrackerGroup, error)

	// CreateGroup creates a named group inside a list
	CreateGroup(ctx context.Context, userID uuid.UUID, req CreateGroupRequest) (*TrackerGroup, error)

	// CreateTask creates a task inside a list, optionally inside a group
	CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*TrackerTask, error)

	// UpdateTask partially updates an existing task
	UpdateTask(ctx context.Context, userID uuid.UUID, req UpdateTaskRequest) (*TrackerTask, error)

	// AddComment adds a comment to a task or a list
	AddComment(ctx context.Context, userID uuid.UUID, req AddCommentRequest) (*TrackerComment, error)
}

// ---------------------------------------------------------------------------
// TokenProvider Interface
// ---------------------------------------------------------------------------

// TokenProvider supplies the tracker client with access secrets. Implemented
// by the application-layer token service on top of the credential store and
// the identity provider.
type TokenProvider interface {
	// AccessSecret returns a usable access secret for the user, refreshing a
	// stale one first. Returns ErrReauthRequired when no usable secret can be
	// produced.
	AccessSecret(ctx context.Context, userID uuid.UUID) (string, error)

	// RefreshAccessSecret forces a refresh exchange and returns the new
	// access secret. Returns ErrReauthRequired when the provider rejects the
	// refresh secret.
	RefreshAccessSecret(ctx context.Context, userID uuid.UUID) (string, error)
}
