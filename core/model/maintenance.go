package model

import "fmt"

// MaintenanceStatus is the lifecycle state of a maintenance request.
type MaintenanceStatus int

const (
	MaintenanceRequested MaintenanceStatus = iota
	MaintenanceApproved
	MaintenanceRejected
	MaintenanceInProgress
	MaintenanceCompleted
	MaintenanceCancelled
)

// String returns a human-readable representation of the status.
func (s MaintenanceStatus) String() string {
	switch s {
	case MaintenanceRequested:
		return "requested"
	case MaintenanceApproved:
		return "approved"
	case MaintenanceRejected:
		return "rejected"
	case MaintenanceInProgress:
		return "in_progress"
	case MaintenanceCompleted:
		return "completed"
	case MaintenanceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// DefinitelyImpacts reports whether the request removes capacity for certain.
func (s MaintenanceStatus) DefinitelyImpacts() bool {
	return s == MaintenanceApproved || s == MaintenanceInProgress
}

// PotentiallyImpacts reports whether the request may remove capacity.
func (s MaintenanceStatus) PotentiallyImpacts() bool {
	return s == MaintenanceRequested
}

// MaintenanceRequest takes a stand out of service for a window.
type MaintenanceRequest struct {
	ID          string
	StandID     string
	Window      Window
	Status      MaintenanceStatus
	Priority    int
	Description string
}

// Validate checks that the request definition is sound. Zero-length windows
// are rejected here and ignored by the overlay.
func (m MaintenanceRequest) Validate() error {
	if m.StandID == "" {
		return fmt.Errorf("maintenance request %s: stand id is required", m.ID)
	}
	if !m.Window.Valid() {
		return fmt.Errorf("maintenance request %s: window start must precede end", m.ID)
	}
	return nil
}
