// Package models holds the GORM row types backing the repositories.
//
// Domain entities in internal/domain stay free of ORM tags; each row type
// here carries the column mappings and converts both ways via ToDomain and
// FromDomain. Repositories never hand a row type across a package boundary.
//
// title.go covers the production side (OrderModel, ReportModel, LeaseModel);
// integration.go covers the tracker link (TrackerCredentialModel).
package models
