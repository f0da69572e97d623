package workflow

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/domain/title"
)

// priorReportMarker is appended to a lease task's name when the lease already
// has a deliverable on file, so abstractors can skip the full courthouse run
const priorReportMarker = " [prior report on file]"

// LeaseRunsheetConfig configures the lease-centric runsheet workflow
type LeaseRunsheetConfig struct {
	// ProjectID is the destination tracker project
	ProjectID string
	// Agencies filters which lease agencies produce tasks. Empty matches all.
	Agencies []title.Agency
	// ReportTypes filters which reports are scanned for leases. Empty matches all.
	ReportTypes []title.ReportType
}

// Validate checks the configuration
func (c *LeaseRunsheetConfig) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("lease runsheet workflow: project id is required")
	}
	if _, err := strconv.ParseInt(c.ProjectID, 10, 64); err != nil {
		return fmt.Errorf("lease runsheet workflow: project id %q is not numeric", c.ProjectID)
	}
	for _, agency := range c.Agencies {
		if !agency.IsValid() {
			return fmt.Errorf("lease runsheet workflow: unknown agency %q", agency)
		}
	}
	for _, reportType := range c.ReportTypes {
		if !reportType.IsValid() {
			return fmt.Errorf("lease runsheet workflow: unknown report type %q", reportType)
		}
	}
	return nil
}

// LeaseRunsheetStrategy builds one flat list per order with one task per
// distinct lease. Leases are matched by the configured agency and report-type
// filters and deduplicated by lease number across reports.
type LeaseRunsheetStrategy struct {
	cfg LeaseRunsheetConfig
}

// NewLeaseRunsheetStrategy creates the strategy after validating its config
func NewLeaseRunsheetStrategy(cfg LeaseRunsheetConfig) (*LeaseRunsheetStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LeaseRunsheetStrategy{cfg: cfg}, nil
}

// Type returns the product type this strategy serves
func (s *LeaseRunsheetStrategy) Type() integration.ProductType {
	return integration.ProductTypeLeaseRunsheets
}

// ProjectID returns the configured destination project
func (s *LeaseRunsheetStrategy) ProjectID() string {
	return s.cfg.ProjectID
}

// Applies reports whether the order has at least one lease matching the
// configured filters
func (s *LeaseRunsheetStrategy) Applies(order *title.Order) bool {
	for _, report := range order.ReportsByType(s.cfg.ReportTypes) {
		if len(report.LeasesByAgency(s.cfg.Agencies)) > 0 {
			return true
		}
	}
	return false
}

// Build returns a single list named after the order. Tasks carry the lease
// number, suffixed with the prior-report marker when the lease already has a
// deliverable on file. No groups are created.
func (s *LeaseRunsheetStrategy) Build(order *title.Order) ([]integration.WorkItemList, error) {
	list := integration.WorkItemList{
		Name: clampName(fmt.Sprintf("Order %s (%s)", order.Number, order.OrderDate.Format("2006-01-02"))),
	}

	seen := make(map[string]bool)
	for _, report := range order.ReportsByType(s.cfg.ReportTypes) {
		for _, lease := range report.LeasesByAgency(s.cfg.Agencies) {
			if seen[lease.LeaseNumber] {
				continue
			}
			seen[lease.LeaseNumber] = true

			name := lease.LeaseNumber
			if lease.PriorDeliverableFound {
				name += priorReportMarker
			}
			list.Tasks = append(list.Tasks, integration.WorkItemTask{Name: clampName(name)})
		}
	}

	if err := list.Validate(); err != nil {
		return nil, err
	}
	return []integration.WorkItemList{list}, nil
}

// clampName truncates a name to the tracker's limit without splitting a rune
func clampName(name string) string {
	if len(name) <= integration.MaxNameLength {
		return name
	}
	cut := integration.MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// Ensure LeaseRunsheetStrategy implements WorkflowStrategy
var _ integration.WorkflowStrategy = (*LeaseRunsheetStrategy)(nil)
