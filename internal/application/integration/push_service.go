package integration

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/domain/title"
	"github.com/titledesk/backend/internal/infrastructure/telemetry"
)

// DeliveryLinkResolver resolves an order's stored delivery object key into a
// shareable, time-limited download URL
type DeliveryLinkResolver interface {
	// ResolveDeliveryLink returns a download URL for the object key
	ResolveDeliveryLink(ctx context.Context, objectKey string) (string, error)
}

// StrategyRegistry provides the registered workflow strategies
type StrategyRegistry interface {
	// Get returns the strategy for the product type, if registered
	Get(productType integration.ProductType) (integration.WorkflowStrategy, bool)

	// All returns every registered strategy
	All() []integration.WorkflowStrategy
}

// PushService pushes an order's work-item hierarchies into the external
// tracker. Each product type runs inside its own error boundary: one type's
// failure never prevents another's submission, and nothing already created
// in the tracker is rolled back.
type PushService struct {
	orders     title.OrderReader
	client     integration.TrackerClient
	strategies StrategyRegistry
	links      DeliveryLinkResolver
	logger     *zap.Logger
}

// NewPushService creates a new push service
func NewPushService(
	orders title.OrderReader,
	client integration.TrackerClient,
	strategies StrategyRegistry,
	links DeliveryLinkResolver,
	logger *zap.Logger,
) *PushService {
	return &PushService{
		orders:     orders,
		client:     client,
		strategies: strategies,
		links:      links,
		logger:     logger,
	}
}

// Projects lists the destination projects visible to the user's connected
// account
func (s *PushService) Projects(ctx context.Context, userID uuid.UUID) ([]integration.TrackerProject, error) {
	return s.client.ListProjects(ctx, userID)
}

// CreateAll pushes the order for the requested product type, or for every
// registered type when the request names ProductTypeAll (or nothing). It
// returns an error only when the order cannot be loaded or the requested
// type is unknown; per-type failures are recorded in the outcome instead.
func (s *PushService) CreateAll(ctx context.Context, orderID, userID uuid.UUID, productType integration.ProductType) (*integration.ExecutionOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracker_push", "create_all")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	requested := productType
	if requested == "" {
		requested = integration.ProductTypeAll
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, order.ID.String(),
		telemetry.SpanAttrOrderNumber, order.Number,
		telemetry.SpanAttrProductType, requested.String(),
	)

	var strategies []integration.WorkflowStrategy
	if requested == integration.ProductTypeAll {
		strategies = s.strategies.All()
	} else {
		strategy, ok := s.strategies.Get(requested)
		if !ok {
			err := fmt.Errorf("%w: product type %s has no registered workflow", integration.ErrTrackerNotConfigured, requested)
			if !requested.IsValid() {
				err = fmt.Errorf("%w: unknown product type %q", integration.ErrTrackerValidation, requested)
			}
			telemetry.RecordError(span, err)
			return nil, err
		}
		strategies = []integration.WorkflowStrategy{strategy}
	}

	s.logger.Info("Pushing order to tracker",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number),
		zap.String("user_id", userID.String()),
		zap.String("product_type", requested.String()))

	comment := s.listComment(ctx, order)

	outcome := integration.NewExecutionOutcome(order.ID)
	for _, strategy := range strategies {
		if !strategy.Applies(order) {
			s.logger.Debug("Product type not applicable to order",
				zap.String("order_id", order.ID.String()),
				zap.String("product_type", strategy.Type().String()))
			continue
		}

		var (
			lists   []integration.CreatedListRef
			pushErr error
		)
		labels := telemetry.PushOperationLabels("tracker_push", strategy.Type().String())
		telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
			lists, pushErr = s.pushProduct(c, userID, order, strategy, comment)
		})
		if pushErr != nil {
			s.logger.Warn("Product push failed",
				zap.String("order_id", order.ID.String()),
				zap.String("product_type", strategy.Type().String()),
				zap.Error(pushErr))
			telemetry.AddEvent(span, "product_push_failed",
				telemetry.SpanAttrProductType, strategy.Type().String(),
				"error", pushErr.Error())
			outcome.RecordFailure(strategy.Type(), pushErr.Error())
			continue
		}
		telemetry.AddEvent(span, "product_pushed",
			telemetry.SpanAttrProductType, strategy.Type().String(),
			telemetry.SpanAttrProjectID, strategy.ProjectID(),
			"lists", len(lists))
		outcome.RecordSuccess(strategy.Type(), lists)
	}

	telemetry.SetAttributes(span,
		"succeeded", len(outcome.Succeeded),
		"failed", len(outcome.Failed),
	)

	s.logger.Info("Order push finished",
		zap.String("order_id", order.ID.String()),
		zap.Int("succeeded", len(outcome.Succeeded)),
		zap.Int("failed", len(outcome.Failed)))

	return outcome, nil
}

// pushProduct builds and submits one product type's hierarchies inside an
// isolated error boundary. Panics in strategy or client code become errors
// so sibling product types still run.
func (s *PushService) pushProduct(ctx context.Context, userID uuid.UUID, order *title.Order, strategy integration.WorkflowStrategy, comment string) (lists []integration.CreatedListRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during product push",
				zap.String("order_id", order.ID.String()),
				zap.String("product_type", strategy.Type().String()),
				zap.Any("panic", r))
			lists = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	projectID := strategy.ProjectID()
	if projectID == "" {
		return nil, fmt.Errorf("%w: no destination project configured for %s", integration.ErrTrackerNotConfigured, strategy.Type())
	}

	hierarchies, err := strategy.Build(order)
	if err != nil {
		return nil, err
	}

	project, err := s.client.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project %s: %w", projectID, err)
	}

	refs := make([]integration.CreatedListRef, 0, len(hierarchies))
	for i := range hierarchies {
		ref, err := s.submitList(ctx, userID, project, &hierarchies[i], comment)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// submitList creates one list with its groups and tasks, in declared order,
// and posts the order context comment on the created list
func (s *PushService) submitList(ctx context.Context, userID uuid.UUID, project *integration.TrackerProject, list *integration.WorkItemList, comment string) (integration.CreatedListRef, error) {
	if err := list.Validate(); err != nil {
		return integration.CreatedListRef{}, err
	}

	created, err := s.client.CreateList(ctx, userID, integration.CreateListRequest{
		ProjectID:   project.ID,
		BoardID:     project.BoardID,
		Name:        list.Name,
		Description: list.Description,
	})
	if err != nil {
		return integration.CreatedListRef{}, fmt.Errorf("failed to create list %q: %w", list.Name, err)
	}

	groupIDs := make(map[string]string, len(list.Groups))
	for _, group := range list.Groups {
		createdGroup, err := s.client.CreateGroup(ctx, userID, integration.CreateGroupRequest{
			ListID: created.ID,
			Name:   group.Name,
		})
		if err != nil {
			return integration.CreatedListRef{}, fmt.Errorf("failed to create group %q: %w", group.Name, err)
		}
		groupIDs[group.Name] = createdGroup.ID
	}

	for _, task := range list.Tasks {
		if _, err := s.client.CreateTask(ctx, userID, integration.CreateTaskRequest{
			ListID:      created.ID,
			GroupID:     groupIDs[task.GroupName],
			Name:        task.Name,
			Description: task.Description,
			DueDate:     task.DueDate,
			AssigneeIDs: task.AssigneeIDs,
		}); err != nil {
			return integration.CreatedListRef{}, fmt.Errorf("failed to create task %q: %w", task.Name, err)
		}
	}

	if comment != "" {
		if _, err := s.client.AddComment(ctx, userID, integration.AddCommentRequest{
			ListID: created.ID,
			Text:   comment,
		}); err != nil {
			return integration.CreatedListRef{}, fmt.Errorf("failed to comment on list %q: %w", list.Name, err)
		}
	}

	return integration.CreatedListRef{ID: created.ID, Name: created.Name, URL: created.URL}, nil
}

// listComment builds the order context comment posted on each created list:
// the order notes plus the resolved delivery link. A failed link resolution
// degrades to a notes-only comment.
func (s *PushService) listComment(ctx context.Context, order *title.Order) string {
	delivery := ""
	if order.DeliveryObjectKey != "" {
		link, err := s.links.ResolveDeliveryLink(ctx, order.DeliveryObjectKey)
		if err != nil {
			s.logger.Warn("Failed to resolve delivery link",
				zap.String("order_id", order.ID.String()),
				zap.String("object_key", order.DeliveryObjectKey),
				zap.Error(err))
		} else if link != "" {
			delivery = "Delivery: " + link
		}
	}

	notes := strings.TrimSpace(order.Notes)
	switch {
	case notes == "" && delivery == "":
		return ""
	case notes == "":
		return delivery
	case delivery == "":
		return clampText(notes, integration.MaxDescriptionLength)
	}

	// the delivery link stays whole; the notes give way
	budget := integration.MaxDescriptionLength - len(delivery) - len("\n\n")
	if budget <= 0 {
		return delivery
	}
	return clampText(notes, budget) + "\n\n" + delivery
}

// clampText truncates text to at most max bytes without splitting a UTF-8
// sequence
func clampText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	clamped := text[:max]
	for len(clamped) > 0 && !utf8.ValidString(clamped) {
		clamped = clamped[:len(clamped)-1]
	}
	return clamped
}
