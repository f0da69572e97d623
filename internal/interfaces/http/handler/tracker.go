package handler

import (
	"github.com/gin-gonic/gin"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
)

// TrackerHandler handles tracker connection API endpoints
type TrackerHandler struct {
	BaseHandler
	connectService *integrationapp.ConnectService
	pushService    *integrationapp.PushService
}

// NewTrackerHandler creates a new TrackerHandler
func NewTrackerHandler(connectService *integrationapp.ConnectService, pushService *integrationapp.PushService) *TrackerHandler {
	return &TrackerHandler{
		connectService: connectService,
		pushService:    pushService,
	}
}

// CommitSelectionRequest represents a request to commit a destination account choice
// @Description Request body for committing the destination account selection
type CommitSelectionRequest struct {
	AccountID string `json:"account_id" binding:"required" example:"9007199"`
}

// AuthURLData carries the authorization redirect URL
// @Description Tracker authorization URL
type AuthURLData struct {
	AuthorizationURL string `json:"authorization_url"`
}

// Connect godoc
// @ID           connectTracker
// @Summary      Start tracker authorization
// @Description  Issues a state-protected authorization URL to redirect the user to the tracker's consent page
// @Tags         tracker
// @Produce      json
// @Success      200 {object} dto.Response{data=AuthURLData}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/connect [get]
func (h *TrackerHandler) Connect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	authURL, err := h.connectService.BeginConnect(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, AuthURLData{AuthorizationURL: authURL})
}

// Callback godoc
// @ID           trackerCallback
// @Summary      Complete tracker authorization
// @Description  Verifies the state nonce, exchanges the authorization code, and either links the single offered account or returns the candidates to choose from
// @Tags         tracker
// @Produce      json
// @Param        state query string true "State nonce issued at connect time"
// @Param        code query string true "Authorization code from the provider"
// @Success      200 {object} dto.Response{data=integrationapp.ConnectCallbackResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/callback [get]
func (h *TrackerHandler) Callback(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	code := c.Query("code")
	if code == "" {
		h.BadRequest(c, "Missing authorization code")
		return
	}
	state := c.Query("state")

	result, err := h.connectService.CompleteConnect(c.Request.Context(), userID, state, code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, integrationapp.ToConnectCallbackResponse(result))
}

// Status godoc
// @ID           getTrackerStatus
// @Summary      Get tracker connection status
// @Description  Reports whether the user has a linked tracker account; never exposes secrets
// @Tags         tracker
// @Produce      json
// @Success      200 {object} dto.Response{data=integrationapp.TrackerStatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/status [get]
func (h *TrackerHandler) Status(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	status, err := h.connectService.Status(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, integrationapp.ToTrackerStatusResponse(status))
}

// Disconnect godoc
// @ID           disconnectTracker
// @Summary      Disconnect the tracker account
// @Description  Removes the user's tracker credential; disconnecting while not connected succeeds
// @Tags         tracker
// @Produce      json
// @Success      204
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/connection [delete]
func (h *TrackerHandler) Disconnect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	if err := h.connectService.Disconnect(c.Request.Context(), userID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// PendingSelection godoc
// @ID           getTrackerPendingSelection
// @Summary      Get pending account candidates
// @Description  Returns the destination accounts still awaiting the user's choice after authorization
// @Tags         tracker
// @Produce      json
// @Success      200 {object} dto.Response{data=integrationapp.PendingSelectionResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/pending-selection [get]
func (h *TrackerHandler) PendingSelection(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	candidates, err := h.connectService.PendingCandidates(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, integrationapp.ToPendingSelectionResponse(candidates))
}

// CommitSelection godoc
// @ID           commitTrackerSelection
// @Summary      Commit the destination account choice
// @Description  Links the chosen candidate account; an account outside the offered candidates is rejected and the selection stays open
// @Tags         tracker
// @Accept       json
// @Produce      json
// @Param        request body CommitSelectionRequest true "Chosen account"
// @Success      201 {object} dto.Response{data=integrationapp.TrackerStatusResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/pending-selection/commit [post]
func (h *TrackerHandler) CommitSelection(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req CommitSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	account, err := h.connectService.CommitSelection(c.Request.Context(), userID, req.AccountID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, integrationapp.TrackerStatusResponse{
		Connected:   true,
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
	})
}

// Projects godoc
// @ID           listTrackerProjects
// @Summary      List tracker projects
// @Description  Returns the projects visible to the user's connected tracker account
// @Tags         tracker
// @Produce      json
// @Success      200 {object} dto.Response{data=[]integrationapp.TrackerProjectResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tracker/projects [get]
func (h *TrackerHandler) Projects(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	projects, err := h.pushService.Projects(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, integrationapp.ToTrackerProjectResponses(projects))
}
