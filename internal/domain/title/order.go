package title

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order lookup errors
var (
	// ErrOrderNotFound indicates the requested order does not exist
	ErrOrderNotFound = errors.New("title: order not found")
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// ReportType tags a report with the kind of deliverable it represents
type ReportType string

const (
	// ReportTypeRunsheet is a lease runsheet report
	ReportTypeRunsheet ReportType = "runsheet"
	// ReportTypeAbstract is a full abstract of title report
	ReportTypeAbstract ReportType = "abstract"
)

// IsValid checks if the report type is valid
func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeRunsheet, ReportTypeAbstract:
		return true
	}
	return false
}

// String returns the string representation
func (t ReportType) String() string {
	return string(t)
}

// DisplayName returns a human-readable name
func (t ReportType) DisplayName() string {
	switch t {
	case ReportTypeRunsheet:
		return "Runsheet"
	case ReportTypeAbstract:
		return "Abstract of Title"
	default:
		return string(t)
	}
}

// Agency identifies the authority that issued a lease
type Agency string

const (
	// AgencyBLM is the federal Bureau of Land Management
	AgencyBLM Agency = "BLM"
	// AgencyState is a state land office
	AgencyState Agency = "STATE"
	// AgencyFee is a privately issued (fee) lease
	AgencyFee Agency = "FEE"
)

// IsValid checks if the agency is valid
func (a Agency) IsValid() bool {
	switch a {
	case AgencyBLM, AgencyState, AgencyFee:
		return true
	}
	return false
}

// String returns the string representation
func (a Agency) String() string {
	return string(a)
}

// DisplayName returns a human-readable name
func (a Agency) DisplayName() string {
	switch a {
	case AgencyBLM:
		return "Bureau of Land Management"
	case AgencyState:
		return "State Land Office"
	case AgencyFee:
		return "Fee"
	default:
		return string(a)
	}
}

// ---------------------------------------------------------------------------
// Read Models
// ---------------------------------------------------------------------------

// Order is a client order as seen by the tracker-push subsystem.
// Orders, reports, and leases are owned by the order-management side of the
// application; this subsystem only ever reads them.
type Order struct {
	// ID is the unique identifier of the order
	ID uuid.UUID
	// Number is the client-facing order number
	Number string
	// OrderDate is the date the order was placed
	OrderDate time.Time
	// Notes contains free-form operator notes for the order
	Notes string
	// DeliveryObjectKey is the object-storage key of the delivery artifact,
	// empty when nothing has been delivered yet
	DeliveryObjectKey string
	// Reports are the title reports that make up this order
	Reports []Report
	// CreatedAt is when the order was created
	CreatedAt time.Time
	// UpdatedAt is when the order was last updated
	UpdatedAt time.Time
}

// Report is a title report inside an order
type Report struct {
	// ID is the unique identifier of the report
	ID uuid.UUID
	// OrderID is the owning order
	OrderID uuid.UUID
	// Type tags the kind of deliverable
	Type ReportType
	// LegalDescription is the legal land description covered by the report
	LegalDescription string
	// PeriodStart is the start of the covered period, nil when open
	PeriodStart *time.Time
	// PeriodEnd is the end of the covered period, nil when open
	PeriodEnd *time.Time
	// Leases are the mineral leases referenced by this report
	Leases []Lease
}

// Lease is a mineral lease referenced by a report
type Lease struct {
	// ID is the unique identifier of the lease record
	ID uuid.UUID
	// ReportID is the owning report
	ReportID uuid.UUID
	// Agency is the issuing authority
	Agency Agency
	// LeaseNumber is the agency-assigned lease number
	LeaseNumber string
	// GrossAcres is the gross acreage covered by the lease
	GrossAcres decimal.Decimal
	// PriorDeliverableFound marks that a previous deliverable is already on
	// file for this lease
	PriorDeliverableFound bool
}

// ReportsByType returns the order's reports matching any of the given types.
// An empty filter matches every report.
func (o *Order) ReportsByType(types []ReportType) []Report {
	if len(types) == 0 {
		return o.Reports
	}
	matched := make([]Report, 0, len(o.Reports))
	for _, r := range o.Reports {
		for _, t := range types {
			if r.Type == t {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}

// LeasesByAgency returns the report's leases issued by any of the given
// agencies. An empty filter matches every lease.
func (r *Report) LeasesByAgency(agencies []Agency) []Lease {
	if len(agencies) == 0 {
		return r.Leases
	}
	matched := make([]Lease, 0, len(r.Leases))
	for _, l := range r.Leases {
		for _, a := range agencies {
			if l.Agency == a {
				matched = append(matched, l)
				break
			}
		}
	}
	return matched
}

// ---------------------------------------------------------------------------
// OrderReader Interface
// ---------------------------------------------------------------------------

// OrderReader defines the read-only access this subsystem has to orders
type OrderReader interface {
	// FindByID loads an order with its reports and leases
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
}
