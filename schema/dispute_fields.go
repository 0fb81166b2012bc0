package schema

// Dispute field names.
const (
	FieldPlatformName       = "platform_name"
	FieldPurchaseDate       = "purchase_date"
	FieldAmount             = "amount"
	FieldCurrency           = "currency"
	FieldOrderNumber        = "order_number"
	FieldProblemType        = "problem_type"
	FieldProblemSubtype     = "problem_subtype"
	FieldDescription        = "description"
	FieldContactedPlatform  = "contacted_platform"
	FieldContactDescription = "contact_description"
	FieldTrainingConsent    = "training_consent"
)

// Problem types offered to the model and accepted on submission.
var ProblemTypes = []string{
	"item_not_received",
	"item_not_as_described",
	"damaged_item",
	"unauthorized_charge",
	"refund_not_received",
	"subscription_cancellation",
	"other",
}

var dispute = MustNew(
	Field{Name: FieldPlatformName, Label: "Platform or merchant", Kind: KindText, Required: true,
		Description: "Name of the platform or merchant the purchase was made on, e.g. Amazon."},
	Field{Name: FieldPurchaseDate, Label: "Purchase date", Kind: KindDate, Required: true,
		Description: "Date of purchase, formatted YYYY-MM-DD."},
	Field{Name: FieldAmount, Label: "Amount paid", Kind: KindAmount, Required: true,
		Description: "Amount paid as a decimal number without currency symbol."},
	Field{Name: FieldCurrency, Label: "Currency", Kind: KindCurrency, Required: true,
		Description: "ISO 4217 currency code, e.g. USD or EUR."},
	Field{Name: FieldOrderNumber, Label: "Order number", Kind: KindText,
		Description: "Order or transaction reference, if the user has one."},
	Field{Name: FieldProblemType, Label: "Problem type", Kind: KindEnum, Required: true, Options: ProblemTypes,
		Description: "Category of the problem with the purchase."},
	Field{Name: FieldProblemSubtype, Label: "Problem detail", Kind: KindText,
		Description: "Narrower classification of the problem, if the user gave one."},
	Field{Name: FieldDescription, Label: "Description", Kind: KindText, Required: true,
		Description: "What happened, in the user's own words."},
	Field{Name: FieldContactedPlatform, Label: "Contacted the platform", Kind: KindYesNo, Required: true,
		Description: "Whether the user already contacted the platform about the problem (yes or no)."},
	Field{Name: FieldContactDescription, Label: "Contact with the platform", Kind: KindText, GatedBy: FieldContactedPlatform,
		Description: "How and when the user contacted the platform and what they answered. Required when contacted_platform is yes."},
	Field{Name: FieldTrainingConsent, Label: "Consent to training use", Kind: KindYesNo, Required: true,
		Description: "Whether the user agrees that the anonymised dispute may be used to improve the service (yes or no)."},
)

// Dispute returns the field schema for filing a purchase dispute.
func Dispute() *Schema {
	return dispute
}
