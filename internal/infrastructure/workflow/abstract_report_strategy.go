package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/domain/title"
)

// AbstractReportConfig configures the grouped abstract-report workflow
type AbstractReportConfig struct {
	// ProjectID is the destination tracker project
	ProjectID string
	// ReportTypes filters which reports get a list. Empty matches all.
	ReportTypes []title.ReportType
	// Phases are the ordered group names created in every list
	Phases []string
	// PerLeasePhases is the subset of phases that also emit one task per
	// lease referenced by the report
	PerLeasePhases []string
	// AssigneeIDs are attached to every fixed phase task
	AssigneeIDs []string
}

// Validate checks the configuration
func (c *AbstractReportConfig) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("abstract report workflow: project id is required")
	}
	if _, err := strconv.ParseInt(c.ProjectID, 10, 64); err != nil {
		return fmt.Errorf("abstract report workflow: project id %q is not numeric", c.ProjectID)
	}
	for _, reportType := range c.ReportTypes {
		if !reportType.IsValid() {
			return fmt.Errorf("abstract report workflow: unknown report type %q", reportType)
		}
	}
	if len(c.Phases) == 0 {
		return fmt.Errorf("abstract report workflow: at least one phase is required")
	}
	seen := make(map[string]bool, len(c.Phases))
	for _, phase := range c.Phases {
		if strings.TrimSpace(phase) == "" {
			return fmt.Errorf("abstract report workflow: phase names must not be empty")
		}
		if seen[phase] {
			return fmt.Errorf("abstract report workflow: duplicate phase %q", phase)
		}
		seen[phase] = true
	}
	for _, phase := range c.PerLeasePhases {
		if !seen[phase] {
			return fmt.Errorf("abstract report workflow: per-lease phase %q is not a configured phase", phase)
		}
	}
	for _, id := range c.AssigneeIDs {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return fmt.Errorf("abstract report workflow: assignee id %q is not numeric", id)
		}
	}
	return nil
}

// AbstractReportStrategy builds one list per matching report, with the
// configured phases as groups. Every phase emits a fixed task in its group;
// per-lease phases additionally emit one task per lease on the report.
type AbstractReportStrategy struct {
	cfg      AbstractReportConfig
	perLease map[string]bool
}

// NewAbstractReportStrategy creates the strategy after validating its config
func NewAbstractReportStrategy(cfg AbstractReportConfig) (*AbstractReportStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	perLease := make(map[string]bool, len(cfg.PerLeasePhases))
	for _, phase := range cfg.PerLeasePhases {
		perLease[phase] = true
	}
	return &AbstractReportStrategy{cfg: cfg, perLease: perLease}, nil
}

// Type returns the product type this strategy serves
func (s *AbstractReportStrategy) Type() integration.ProductType {
	return integration.ProductTypeAbstractReports
}

// ProjectID returns the configured destination project
func (s *AbstractReportStrategy) ProjectID() string {
	return s.cfg.ProjectID
}

// Applies reports whether the order has at least one matching report.
// A report with no leases still applies, its phases just emit fixed tasks.
func (s *AbstractReportStrategy) Applies(order *title.Order) bool {
	return len(order.ReportsByType(s.cfg.ReportTypes)) > 0
}

// Build returns one list per matching report, named from the report's legal
// description. Groups follow the configured phase order. The final phase's
// fixed task is due on the report's covered-period end date when present.
func (s *AbstractReportStrategy) Build(order *title.Order) ([]integration.WorkItemList, error) {
	reports := order.ReportsByType(s.cfg.ReportTypes)
	lists := make([]integration.WorkItemList, 0, len(reports))

	for _, report := range reports {
		list := integration.WorkItemList{
			Name:   s.listName(order, report),
			Groups: make([]integration.WorkItemGroup, 0, len(s.cfg.Phases)),
		}
		for _, phase := range s.cfg.Phases {
			list.Groups = append(list.Groups, integration.WorkItemGroup{Name: phase})
		}

		for i, phase := range s.cfg.Phases {
			fixed := integration.WorkItemTask{
				Name:        phase,
				GroupName:   phase,
				AssigneeIDs: s.cfg.AssigneeIDs,
			}
			if i == len(s.cfg.Phases)-1 && report.PeriodEnd != nil {
				fixed.DueDate = report.PeriodEnd.Format(integration.DueDateLayout)
			}
			list.Tasks = append(list.Tasks, fixed)

			if !s.perLease[phase] {
				continue
			}
			for _, lease := range report.Leases {
				list.Tasks = append(list.Tasks, integration.WorkItemTask{
					Name:      clampName(lease.LeaseNumber),
					GroupName: phase,
				})
			}
		}

		if err := list.Validate(); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}

	return lists, nil
}

func (s *AbstractReportStrategy) listName(order *title.Order, report title.Report) string {
	name := strings.TrimSpace(report.LegalDescription)
	if name == "" {
		name = fmt.Sprintf("Abstract (Order %s)", order.Number)
	}
	return clampName(name)
}

// Ensure AbstractReportStrategy implements WorkflowStrategy
var _ integration.WorkflowStrategy = (*AbstractReportStrategy)(nil)
