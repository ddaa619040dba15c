package models

import "github.com/google/uuid"

// IncidentTimeLayout - формат отметки времени обращения (yyyy-MM-dd HH:mm:ss)
const IncidentTimeLayout = "2006-01-02 15:04:05"

// Incident - сохраненное обращение о происшествии. После создания не изменяется.
type Incident struct {
	ID                uuid.UUID `json:"id"`
	ReporterID        uuid.UUID `json:"reporter_id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	StationName       string    `json:"station_name"`
	StationContact    string    `json:"station_contact"`
	EvidenceURL       string    `json:"evidence_url"`
	EmergencyContact1 string    `json:"emergency_contact_1"`
	EmergencyContact2 string    `json:"emergency_contact_2"`
	CreatedAt         string    `json:"created_at"`
}

// IncidentStats - сводка по обращениям за окно времени
type IncidentStats struct {
	WindowMinutes    int `json:"window_minutes"`
	IncidentCount    int `json:"incident_count"`
	ReportingDevices int `json:"reporting_devices"`
}
