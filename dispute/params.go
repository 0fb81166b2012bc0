package dispute

import (
	"fmt"
	"strings"
	"time"

	"disputeai/evidence"
	"disputeai/schema"
)

// CreateParams contains write parameters for a new dispute.
type CreateParams struct {
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
}

// BundleParams contains write parameters for a proof bundle.
type BundleParams struct {
	DisputeID      string
	PrimaryURL     string
	PrimaryName    string
	SecondaryURLs  []string
	SecondaryNames []string
	EvidenceType   string
	Description    string
}

// ParamsFromFields converts validated wizard fields into insert parameters.
func ParamsFromFields(userID string, fields map[string]string) (CreateParams, error) {
	date, err := time.Parse("2006-01-02", fields[schema.FieldPurchaseDate])
	if err != nil {
		return CreateParams{}, fmt.Errorf("dispute: purchase date: %w", err)
	}
	return CreateParams{
		UserID:             userID,
		PlatformName:       fields[schema.FieldPlatformName],
		PurchaseDate:       date,
		Amount:             fields[schema.FieldAmount],
		Currency:           strings.ToUpper(fields[schema.FieldCurrency]),
		OrderNumber:        optional(fields[schema.FieldOrderNumber]),
		ProblemType:        fields[schema.FieldProblemType],
		ProblemSubtype:     optional(fields[schema.FieldProblemSubtype]),
		Description:        fields[schema.FieldDescription],
		ContactedPlatform:  fields[schema.FieldContactedPlatform] == schema.Yes,
		ContactDescription: optional(fields[schema.FieldContactDescription]),
		TrainingConsent:    fields[schema.FieldTrainingConsent] == schema.Yes,
		Status:             StatusDraft,
		UserConfirmedInput: true,
	}, nil
}

// BundleFromItems splits items into the primary reference and the
// secondary list, preserving upload order.
func BundleFromItems(disputeID string, items []evidence.Item, meta evidence.Meta) BundleParams {
	p := BundleParams{
		DisputeID:      disputeID,
		SecondaryURLs:  make([]string, 0, len(items)),
		SecondaryNames: make([]string, 0, len(items)),
		EvidenceType:   meta.Type,
		Description:    meta.Description,
	}
	for i, it := range items {
		if i == 0 {
			p.PrimaryURL, p.PrimaryName = it.URL, it.Name
			continue
		}
		p.SecondaryURLs = append(p.SecondaryURLs, it.URL)
		p.SecondaryNames = append(p.SecondaryNames, it.Name)
	}
	return p
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
