package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/infrastructure/telemetry"
)

// PushHandler handles order push API endpoints
type PushHandler struct {
	BaseHandler
	pushService *integrationapp.PushService
	metrics     *telemetry.BusinessMetrics
}

// NewPushHandler creates a new PushHandler. Metrics may be nil when telemetry
// is disabled.
func NewPushHandler(pushService *integrationapp.PushService, metrics *telemetry.BusinessMetrics) *PushHandler {
	return &PushHandler{
		pushService: pushService,
		metrics:     metrics,
	}
}

// PushOrderRequest represents a request to push an order to the tracker
// @Description Request body for pushing an order's work items; an absent body or product type pushes every applicable type
type PushOrderRequest struct {
	ProductType string `json:"product_type" binding:"omitempty,oneof=all lease_runsheets abstract_reports" example:"all"`
}

// PushOrder godoc
// @ID           pushOrderToTracker
// @Summary      Push an order to the tracker
// @Description  Builds the order's work-item lists for the requested product type (or all) and submits them to the tracker. Each product type succeeds or fails on its own; the response always reports both sets.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body PushOrderRequest false "Product type selection"
// @Success      200 {object} dto.Response{data=integration.ExecutionOutcome}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/tracker-push [post]
func (h *PushHandler) PushOrder(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	// An absent body means "push everything"
	var req PushOrderRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	productType := integration.ProductTypeAll
	if req.ProductType != "" {
		productType = integration.ProductType(req.ProductType)
	}

	outcome, err := h.pushService.CreateAll(c.Request.Context(), orderID, userID, productType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.recordOutcome(c, outcome)
	h.Success(c, outcome)
}

// recordOutcome emits push metrics for every attempted product type
func (h *PushHandler) recordOutcome(c *gin.Context, outcome *integration.ExecutionOutcome) {
	if h.metrics == nil {
		return
	}
	ctx := c.Request.Context()
	for _, success := range outcome.Succeeded {
		h.metrics.RecordPushRequested(ctx, success.ProductType.String())
		h.metrics.RecordListsCreated(ctx, success.ProductType.String(), int64(len(success.Lists)))
	}
	for _, failure := range outcome.Failed {
		h.metrics.RecordPushRequested(ctx, failure.ProductType.String())
		h.metrics.RecordProductFailure(ctx, failure.ProductType.String())
	}
}
