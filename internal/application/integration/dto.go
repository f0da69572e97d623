package integration

import (
	"github.com/titledesk/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Tracker Connection DTOs
// ---------------------------------------------------------------------------

// TrackerStatusResponse reports a user's tracker connection in API responses
type TrackerStatusResponse struct {
	Connected   bool   `json:"connected"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

// ConnectedAccountResponse represents a linked tracker account in API responses
type ConnectedAccountResponse struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
}

// CandidateAccountResponse represents a selectable destination account
type CandidateAccountResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PendingSelectionResponse carries the selectable accounts of a pending
// authorization. The secrets held alongside them never appear here.
type PendingSelectionResponse struct {
	Candidates []CandidateAccountResponse `json:"candidates"`
}

// Callback status values
const (
	ConnectStatusConnected         = "connected"
	ConnectStatusSelectionRequired = "selection_required"
)

// ConnectCallbackResponse is the client-facing outcome of the authorization
// callback
type ConnectCallbackResponse struct {
	Status     string                     `json:"status"`
	Account    *ConnectedAccountResponse  `json:"account,omitempty"`
	Candidates []CandidateAccountResponse `json:"candidates,omitempty"`
}

// TrackerProjectResponse represents a tracker project in API responses
type TrackerProjectResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BoardID string `json:"board_id"`
}

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// PushOrderRequest represents a request to push an order into the tracker.
// An absent product type requests every applicable one.
type PushOrderRequest struct {
	ProductType string `json:"product_type,omitempty"`
}

// ToProductType converts the requested product type to its domain value
func (r PushOrderRequest) ToProductType() integration.ProductType {
	if r.ProductType == "" {
		return integration.ProductTypeAll
	}
	return integration.ProductType(r.ProductType)
}

// CommitSelectionRequest represents a request to commit a destination
// account choice
type CommitSelectionRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

// ---------------------------------------------------------------------------
// Conversion functions
// ---------------------------------------------------------------------------

// ToTrackerStatusResponse converts a connection status to a response DTO
func ToTrackerStatusResponse(status *ConnectionStatus) TrackerStatusResponse {
	return TrackerStatusResponse{
		Connected:   status.Connected,
		AccountID:   status.AccountID,
		AccountName: status.AccountName,
	}
}

// ToConnectedAccountResponse converts a connected account to a response DTO
func ToConnectedAccountResponse(account *ConnectedAccount) ConnectedAccountResponse {
	return ConnectedAccountResponse{
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
	}
}

// ToCandidateAccountResponses converts domain candidates to response DTOs
func ToCandidateAccountResponses(candidates []integration.CandidateAccount) []CandidateAccountResponse {
	responses := make([]CandidateAccountResponse, len(candidates))
	for i, c := range candidates {
		responses[i] = CandidateAccountResponse{ID: c.ID, Name: c.Name}
	}
	return responses
}

// ToPendingSelectionResponse converts domain candidates to a pending
// selection response
func ToPendingSelectionResponse(candidates []integration.CandidateAccount) PendingSelectionResponse {
	return PendingSelectionResponse{
		Candidates: ToCandidateAccountResponses(candidates),
	}
}

// ToConnectCallbackResponse converts a connect result to a response DTO
func ToConnectCallbackResponse(result *ConnectResult) ConnectCallbackResponse {
	if result.SelectionRequired {
		return ConnectCallbackResponse{
			Status:     ConnectStatusSelectionRequired,
			Candidates: ToCandidateAccountResponses(result.Candidates),
		}
	}
	response := ConnectCallbackResponse{Status: ConnectStatusConnected}
	if result.Account != nil {
		account := ToConnectedAccountResponse(result.Account)
		response.Account = &account
	}
	return response
}

// ToTrackerProjectResponses converts domain projects to response DTOs
func ToTrackerProjectResponses(projects []integration.TrackerProject) []TrackerProjectResponse {
	responses := make([]TrackerProjectResponse, len(projects))
	for i, p := range projects {
		responses[i] = TrackerProjectResponse{ID: p.ID, Name: p.Name, BoardID: p.BoardID}
	}
	return responses
}
