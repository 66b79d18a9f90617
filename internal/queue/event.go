// Package queue defines message payloads exchanged over the message broker.
package queue

// ResourceDownloadedEvent is published whenever the entitlement resolver
// allows a download for an authenticated principal. It carries enough
// information for downstream consumers to log, meter or bill without
// querying the primary database.
type ResourceDownloadedEvent struct {
	ResourceID    uint64 `json:"resource_id"`
	ResourceTitle string `json:"resource_title"`
	Tier          string `json:"tier"`
	PrincipalKind string `json:"principal_kind"`
	PrincipalID   uint64 `json:"principal_id"`
	Role          string `json:"role,omitempty"`
	PlanName      string `json:"plan_name,omitempty"`
	DownloadedAt  string `json:"downloaded_at"`
}
