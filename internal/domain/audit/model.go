package audit

import "time"

// Entry is one recorded API access.
type Entry struct {
	ID        int64                  `json:"id"`
	Actor     string                 `json:"actor"`
	Role      string                 `json:"role"`
	Action    string                 `json:"action"`
	PatientID *string                `json:"patient_id"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

type Filter struct {
	PatientID string
	Actor     string
	Limit     int
}
