package models

import "time"

// Campaign is one "send this rendered message to this audience" action.
// It lives only for the duration of the request that created it.
type Campaign struct {
	ID          string              `json:"id"`
	ListingType ListingType         `json:"listing_type"`
	ListingID   string              `json:"listing_id"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"` // pre-rendered HTML
	ReplyTo     string              `json:"reply_to,omitempty"`
	Audience    AudienceDescription `json:"audience"`
	CreatedBy   string              `json:"created_by,omitempty"`
}

// FailedRecipient records why a single recipient was not delivered
type FailedRecipient struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// DispatchReport is the authoritative result of a dispatch.
// Sent + len(Failed) == TotalAttempted always holds; for a report that was not
// aborted TotalAttempted == Total.
type DispatchReport struct {
	CampaignID     string            `json:"campaign_id"`
	ListingType    ListingType       `json:"listing_type"`
	ListingID      string            `json:"listing_id"`
	Total          int               `json:"total"`
	TotalAttempted int               `json:"total_attempted"`
	Sent           int               `json:"sent"`
	Failed         []FailedRecipient `json:"failed"`
	Delivered      []string          `json:"delivered"`
	Aborted        bool              `json:"aborted"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// FailedAddresses returns the failed addresses without reasons
func (r *DispatchReport) FailedAddresses() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Address)
	}
	return out
}

// Consistent reports whether the counting invariant holds
func (r *DispatchReport) Consistent() bool {
	if r.Sent+len(r.Failed) != r.TotalAttempted {
		return false
	}
	if !r.Aborted && r.TotalAttempted != r.Total {
		return false
	}
	return r.TotalAttempted <= r.Total
}

// BatchProgress is the running tally shown while a dispatch is in flight.
// It is advisory; DispatchReport is authoritative.
type BatchProgress struct {
	CampaignID string    `json:"campaign_id"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Batch      int       `json:"batch"`
	Batches    int       `json:"batches"`
	Done       bool      `json:"done"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Draft is an administrator's in-progress custom email, saved explicitly
type Draft struct {
	ID          string    `json:"id"`
	AdminEmail  string    `json:"admin_email"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Which       string    `json:"which"`
	PersonTypes []string  `json:"person_types"`
	UpdatedAt   time.Time `json:"updated_at"`
}
