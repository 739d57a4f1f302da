package models

// AudienceDescription describes who a campaign targets.
// An empty Types slice means every person qualifies.
type AudienceDescription struct {
	Types      []PersonType    `json:"person_types"`
	Preference EmailPreference `json:"preference"`
}

// ResolvedRecipient is one deliverable address. Address is never empty.
type ResolvedRecipient struct {
	PersonID string `json:"person_id"`
	Address  string `json:"address"`
}

// AudienceUser is a person that contributed at least one recipient,
// returned by the pre-flight count
type AudienceUser struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Type   PersonType `json:"type"`
	Email1 string     `json:"email1"`
	Email2 string     `json:"email2"`
}
