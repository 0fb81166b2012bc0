package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusResolved  Status = "resolved"
)

// Record mirrors the disputes table.
type Record struct {
	ID                 string
	UserID             string
	PlatformName       string
	PurchaseDate       time.Time
	Amount             string
	Currency           string
	OrderNumber        *string
	ProblemType        string
	ProblemSubtype     *string
	Description        string
	ContactedPlatform  bool
	ContactDescription *string
	TrainingConsent    bool
	Status             Status
	UserConfirmedInput bool
	Archived           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProofBundle mirrors the proof_bundles table. One bundle groups every
// evidence item of a wizard completion: the first upload is primary.
type ProofBundle struct {
	ID             string
	DisputeID      string
	PrimaryURL     string
	PrimaryName    string
	SecondaryURLs  []string
	SecondaryNames []string
	EvidenceType   string
	Description    string
	CreatedAt      time.Time
}

// Detail is a dispute together with its proof bundle, if one was stored.
type Detail struct {
	Record
	Bundle *ProofBundle
}

// ProofUploaded reports whether evidence is attached.
func (d Detail) ProofUploaded() bool {
	return d.Bundle != nil
}

// Summary is a list row.
type Summary struct {
	Record
	ProofUploaded bool
}
