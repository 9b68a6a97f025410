package model

// Record is a company record as fetched from the Bubble Data API. It is never
// written back.
type Record struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Website  string `json:"website"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	LegacyID string `json:"legacy_id,omitempty"`
}

// Job is the work-queue payload: one record id to reconcile.
type Job struct {
	RecordID string `json:"record_id" validate:"required,max=128,printascii"`
}
