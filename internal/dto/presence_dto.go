package dto

import "time"

// PresenceEntryDTO is one currently connected participant. Presence is
// ephemeral telemetry for observer dashboards; it has no bearing on
// grading.
type PresenceEntryDTO struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}
