package integration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Request Validation Tests
// ---------------------------------------------------------------------------

func TestCreateListRequest_Validate(t *testing.T) {
	valid := CreateListRequest{
		ProjectID:   "42",
		BoardID:     "7",
		Name:        "Order 2024-0117 (2024-03-05)",
		Description: "Runsheet delivery",
	}

	t.Run("Valid request", func(t *testing.T) {
		req := valid
		require.NoError(t, req.Validate())
	})

	t.Run("Non-numeric project id", func(t *testing.T) {
		req := valid
		req.ProjectID = "abc"
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Empty board id", func(t *testing.T) {
		req := valid
		req.BoardID = ""
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Empty name", func(t *testing.T) {
		req := valid
		req.Name = ""
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Overlong name", func(t *testing.T) {
		req := valid
		req.Name = strings.Repeat("x", MaxNameLength+1)
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Overlong description", func(t *testing.T) {
		req := valid
		req.Description = strings.Repeat("x", MaxDescriptionLength+1)
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})
}

func TestCreateTaskRequest_Validate(t *testing.T) {
	valid := CreateTaskRequest{
		ListID:      "11",
		GroupID:     "3",
		Name:        "BLM WYW-188932",
		Description: "Runsheet for federal lease",
		DueDate:     "2024-03-05",
		AssigneeIDs: []string{"501", "502"},
	}

	t.Run("Valid request", func(t *testing.T) {
		req := valid
		require.NoError(t, req.Validate())
	})

	t.Run("Ungrouped task", func(t *testing.T) {
		req := valid
		req.GroupID = ""
		require.NoError(t, req.Validate())
	})

	t.Run("No due date", func(t *testing.T) {
		req := valid
		req.DueDate = ""
		require.NoError(t, req.Validate())
	})

	t.Run("Malformed due date", func(t *testing.T) {
		req := valid
		req.DueDate = "03/05/2024"
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Impossible due date", func(t *testing.T) {
		req := valid
		req.DueDate = "2024-02-30"
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Non-numeric assignee", func(t *testing.T) {
		req := valid
		req.AssigneeIDs = []string{"501", "jane"}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Non-numeric group id", func(t *testing.T) {
		req := valid
		req.GroupID = "phase-1"
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})
}

func TestUpdateTaskRequest_Validate(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	t.Run("Single field update", func(t *testing.T) {
		req := UpdateTaskRequest{TaskID: "9", Name: strPtr("Renamed")}
		require.NoError(t, req.Validate())
	})

	t.Run("Clearing due date", func(t *testing.T) {
		req := UpdateTaskRequest{TaskID: "9", DueDate: strPtr("")}
		require.NoError(t, req.Validate())
	})

	t.Run("No fields set", func(t *testing.T) {
		req := UpdateTaskRequest{TaskID: "9"}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Empty replacement name", func(t *testing.T) {
		req := UpdateTaskRequest{TaskID: "9", Name: strPtr("")}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Malformed replacement due date", func(t *testing.T) {
		req := UpdateTaskRequest{TaskID: "9", DueDate: strPtr("soon")}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})
}

func TestAddCommentRequest_Validate(t *testing.T) {
	t.Run("Task comment", func(t *testing.T) {
		req := AddCommentRequest{TaskID: "9", Text: "Prior report on file"}
		require.NoError(t, req.Validate())
	})

	t.Run("List comment", func(t *testing.T) {
		req := AddCommentRequest{ListID: "11", Text: "Delivery: https://example.com/d/abc"}
		require.NoError(t, req.Validate())
	})

	t.Run("Both targets set", func(t *testing.T) {
		req := AddCommentRequest{TaskID: "9", ListID: "11", Text: "hi"}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Neither target set", func(t *testing.T) {
		req := AddCommentRequest{Text: "hi"}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})

	t.Run("Empty text", func(t *testing.T) {
		req := AddCommentRequest{TaskID: "9"}
		assert.ErrorIs(t, req.Validate(), ErrTrackerValidation)
	})
}
