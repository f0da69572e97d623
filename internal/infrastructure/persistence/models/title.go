package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/titledesk/backend/internal/domain/title"
)

// OrderModel is the persistence model for the Order read model. Orders are
// owned by the order-management side; the tracker-push subsystem only reads
// them, so there is no writer beyond test seeding.
type OrderModel struct {
	ID                uuid.UUID     `gorm:"type:uuid;primary_key"`
	Number            string        `gorm:"type:varchar(50);not null;uniqueIndex:idx_orders_number"`
	OrderDate         time.Time     `gorm:"not null;index"`
	Notes             string        `gorm:"type:text"`
	DeliveryObjectKey string        `gorm:"type:varchar(500)"`
	Reports           []ReportModel `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt         time.Time     `gorm:"not null"`
	UpdatedAt         time.Time     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order read model.
func (m *OrderModel) ToDomain() *title.Order {
	order := &title.Order{
		ID:                m.ID,
		Number:            m.Number,
		OrderDate:         m.OrderDate,
		Notes:             m.Notes,
		DeliveryObjectKey: m.DeliveryObjectKey,
		Reports:           make([]title.Report, len(m.Reports)),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	for i, report := range m.Reports {
		order.Reports[i] = *report.ToDomain()
	}
	return order
}

// FromDomain populates the persistence model from a domain Order read model.
func (m *OrderModel) FromDomain(o *title.Order) {
	m.ID = o.ID
	m.Number = o.Number
	m.OrderDate = o.OrderDate
	m.Notes = o.Notes
	m.DeliveryObjectKey = o.DeliveryObjectKey
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.Reports = make([]ReportModel, len(o.Reports))
	for i, report := range o.Reports {
		m.Reports[i] = *ReportModelFromDomain(&report)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order read model.
func OrderModelFromDomain(o *title.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// ReportModel is the persistence model for the Report read model.
type ReportModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key"`
	OrderID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_reports_order"`
	Type             title.ReportType `gorm:"type:varchar(20);not null"`
	LegalDescription string           `gorm:"type:text"`
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	Leases           []LeaseModel `gorm:"foreignKey:ReportID;references:ID"`
}

// TableName returns the table name for GORM
func (ReportModel) TableName() string {
	return "reports"
}

// ToDomain converts the persistence model to a domain Report read model.
func (m *ReportModel) ToDomain() *title.Report {
	report := &title.Report{
		ID:               m.ID,
		OrderID:          m.OrderID,
		Type:             m.Type,
		LegalDescription: m.LegalDescription,
		PeriodStart:      m.PeriodStart,
		PeriodEnd:        m.PeriodEnd,
		Leases:           make([]title.Lease, len(m.Leases)),
	}
	for i, lease := range m.Leases {
		report.Leases[i] = *lease.ToDomain()
	}
	return report
}

// FromDomain populates the persistence model from a domain Report read model.
func (m *ReportModel) FromDomain(r *title.Report) {
	m.ID = r.ID
	m.OrderID = r.OrderID
	m.Type = r.Type
	m.LegalDescription = r.LegalDescription
	m.PeriodStart = r.PeriodStart
	m.PeriodEnd = r.PeriodEnd
	m.Leases = make([]LeaseModel, len(r.Leases))
	for i, lease := range r.Leases {
		m.Leases[i] = *LeaseModelFromDomain(&lease)
	}
}

// ReportModelFromDomain creates a new persistence model from a domain Report read model.
func ReportModelFromDomain(r *title.Report) *ReportModel {
	m := &ReportModel{}
	m.FromDomain(r)
	return m
}

// LeaseModel is the persistence model for the Lease read model.
type LeaseModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReportID              uuid.UUID       `gorm:"type:uuid;not null;index:idx_leases_report"`
	Agency                title.Agency    `gorm:"type:varchar(10);not null"`
	LeaseNumber           string          `gorm:"type:varchar(100);not null"`
	GrossAcres            decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	PriorDeliverableFound bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (LeaseModel) TableName() string {
	return "leases"
}

// ToDomain converts the persistence model to a domain Lease read model.
func (m *LeaseModel) ToDomain() *title.Lease {
	return &title.Lease{
		ID:                    m.ID,
		ReportID:              m.ReportID,
		Agency:                m.Agency,
		LeaseNumber:           m.LeaseNumber,
		GrossAcres:            m.GrossAcres,
		PriorDeliverableFound: m.PriorDeliverableFound,
	}
}

// FromDomain populates the persistence model from a domain Lease read model.
func (m *LeaseModel) FromDomain(l *title.Lease) {
	m.ID = l.ID
	m.ReportID = l.ReportID
	m.Agency = l.Agency
	m.LeaseNumber = l.LeaseNumber
	m.GrossAcres = l.GrossAcres
	m.PriorDeliverableFound = l.PriorDeliverableFound
}

// LeaseModelFromDomain creates a new persistence model from a domain Lease read model.
func LeaseModelFromDomain(l *title.Lease) *LeaseModel {
	m := &LeaseModel{}
	m.FromDomain(l)
	return m
}
