package integration

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/titledesk/backend/internal/domain/title"
)

// ---------------------------------------------------------------------------
// ProductType Enum
// ---------------------------------------------------------------------------

// ProductType identifies a configured work-item workflow. Each product type
// maps to one strategy and one destination project.
type ProductType string

const (
	// ProductTypeLeaseRunsheets is the lease-centric flat workflow: one list
	// per order, one task per matched lease
	ProductTypeLeaseRunsheets ProductType = "lease_runsheets"
	// ProductTypeAbstractReports is the report-centric grouped workflow: one
	// list per matched report, phase groups, fixed and per-lease tasks
	ProductTypeAbstractReports ProductType = "abstract_reports"
	// ProductTypeAll requests every applicable product type in one push
	ProductTypeAll ProductType = "all"
)

// IsValid checks if the product type names a concrete workflow
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeLeaseRunsheets, ProductTypeAbstractReports:
		return true
	}
	return false
}

// String returns the string representation
func (t ProductType) String() string {
	return string(t)
}

// DisplayName returns a human-readable name
func (t ProductType) DisplayName() string {
	switch t {
	case ProductTypeLeaseRunsheets:
		return "Lease Runsheets"
	case ProductTypeAbstractReports:
		return "Abstract Reports"
	case ProductTypeAll:
		return "All Product Types"
	default:
		return string(t)
	}
}

// ---------------------------------------------------------------------------
// Work Item Hierarchy
// ---------------------------------------------------------------------------

// WorkItemTask describes one task to create. GroupName refers to a group
// declared in the same WorkItemList; it is resolved to a tracker group id at
// submission time.
type WorkItemTask struct {
	// Name is the task name
	Name string
	// Description is optional
	Description string
	// DueDate is an optional YYYY-MM-DD date
	DueDate string
	// AssigneeIDs are optional tracker user identifiers
	AssigneeIDs []string
	// GroupName is the declaring group's name, empty for an ungrouped task
	GroupName string
}

// WorkItemGroup declares a named group inside a list
type WorkItemGroup struct {
	// Name is the group name
	Name string
}

// WorkItemList is the in-memory hierarchy a strategy builds for submission:
// one list, its groups in creation order, and its tasks in creation order.
// The hierarchy is never persisted locally; it becomes authoritative only
// inside the tracker.
type WorkItemList struct {
	// Name is the list name
	Name string
	// Description is optional
	Description string
	// Groups are created before tasks, in declared order
	Groups []WorkItemGroup
	// Tasks are created in declared order
	Tasks []WorkItemTask
}

// Validate checks the hierarchy's structural invariant: every task's group
// reference must name a group declared in this list.
func (l *WorkItemList) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: list name must not be empty", ErrTrackerValidation)
	}
	declared := make(map[string]struct{}, len(l.Groups))
	for _, g := range l.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name must not be empty", ErrTrackerValidation)
		}
		declared[g.Name] = struct{}{}
	}
	for _, t := range l.Tasks {
		if t.GroupName == "" {
			continue
		}
		if _, ok := declared[t.GroupName]; !ok {
			return fmt.Errorf("%w: task %q references undeclared group %q", ErrTrackerValidation, t.Name, t.GroupName)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// WorkflowStrategy Interface
// ---------------------------------------------------------------------------

// WorkflowStrategy synthesizes work-item hierarchies for one product type.
// Implementations are pure functions of the order and their static
// configuration; they perform no network calls.
type WorkflowStrategy interface {
	// Type returns the product type this strategy serves
	Type() ProductType

	// ProjectID returns the configured destination project in the tracker
	ProjectID() string

	// Applies reports whether the order contains anything for this product
	// type
	Applies(order *title.Order) bool

	// Build returns the hierarchies to submit, one WorkItemList per tracker
	// list. The lease-centric workflow returns exactly one; the grouped
	// workflow returns one per matching report.
	Build(order *title.Order) ([]WorkItemList, error)
}

// ---------------------------------------------------------------------------
// ExecutionOutcome
// ---------------------------------------------------------------------------

// CreatedListRef references a list created during a push
type CreatedListRef struct {
	// ID is the tracker list identifier
	ID string `json:"id"`
	// Name is the list name
	Name string `json:"name"`
	// URL is the tracker's web link to the list
	URL string `json:"url"`
}

// ProductSuccess records one product type that pushed successfully
type ProductSuccess struct {
	// ProductType is the succeeded type
	ProductType ProductType `json:"product_type"`
	// Lists are the created lists
	Lists []CreatedListRef `json:"lists"`
}

// ProductFailure records one product type that failed to push
type ProductFailure struct {
	// ProductType is the failed type
	ProductType ProductType `json:"product_type"`
	// Reason is a short error summary
	Reason string `json:"reason"`
}

// ExecutionOutcome aggregates per-product-type push results for one order.
// A push always produces an outcome; individual failures never abort sibling
// product types.
type ExecutionOutcome struct {
	// OrderID is the pushed order
	OrderID uuid.UUID `json:"order_id"`
	// Succeeded lists the product types that pushed, with created lists
	Succeeded []ProductSuccess `json:"succeeded"`
	// Failed lists the product types that did not push, with reasons
	Failed []ProductFailure `json:"failed"`
}

// NewExecutionOutcome creates an empty outcome for an order
func NewExecutionOutcome(orderID uuid.UUID) *ExecutionOutcome {
	return &ExecutionOutcome{
		OrderID:   orderID,
		Succeeded: make([]ProductSuccess, 0),
		Failed:    make([]ProductFailure, 0),
	}
}

// RecordSuccess adds a succeeded product type
func (o *ExecutionOutcome) RecordSuccess(productType ProductType, lists []CreatedListRef) {
	o.Succeeded = append(o.Succeeded, ProductSuccess{ProductType: productType, Lists: lists})
}

// RecordFailure adds a failed product type
func (o *ExecutionOutcome) RecordFailure(productType ProductType, reason string) {
	o.Failed = append(o.Failed, ProductFailure{ProductType: productType, Reason: reason})
}

// AnySucceeded reports whether at least one product type pushed
func (o *ExecutionOutcome) AnySucceeded() bool {
	return len(o.Succeeded) > 0
}

// NothingToCreate reports whether no product type applied to the order
func (o *ExecutionOutcome) NothingToCreate() bool {
	return len(o.Succeeded) == 0 && len(o.Failed) == 0
}
