// Package integration contains the Tracker Integration bounded context.
// This context pushes orders into an external task-tracking service and
// manages the per-user OAuth credential lifecycle required to do so.
//
// Key concepts:
//   - TrackerClient: Port interface for the external task tracker's REST surface
//   - IdentityProvider: Port interface for the tracker's OAuth identity provider
//   - TrackerCredential: Entity linking one internal user to one external account
//   - PendingSelection: Ephemeral holding area for multi-account authorizations
//   - WorkItemList: In-memory hierarchy submitted to the tracker
//   - WorkflowStrategy: Per-product-type synthesis of work-item hierarchies
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
