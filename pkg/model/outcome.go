package model

type Status string

const (
	StatusSuccess  Status = "success"
	StatusSkipped  Status = "skipped"
	StatusNotFound Status = "not_found"
)

// Outcome is what reconciling one record produced. MatchType is only set
// when Status is StatusSuccess.
type Outcome struct {
	Status    Status    `json:"status"`
	MatchType MatchType `json:"match_type,omitempty"`
	RecordID  string    `json:"record_id"`
	LinkID    string    `json:"link_id,omitempty"`
}

// Label is the single tally bucket of the outcome: the match type for
// successes, the status otherwise.
func (o Outcome) Label() string {
	if o.Status == StatusSuccess {
		return string(o.MatchType)
	}
	return string(o.Status)
}

func Skipped(recordID string) *Outcome {
	return &Outcome{Status: StatusSkipped, RecordID: recordID}
}

func NotFound(recordID string) *Outcome {
	return &Outcome{Status: StatusNotFound, RecordID: recordID}
}

func Succeeded(recordID, linkID string, matchType MatchType) *Outcome {
	return &Outcome{
		Status:    StatusSuccess,
		MatchType: matchType,
		RecordID:  recordID,
		LinkID:    linkID,
	}
}
