package models

// PriceBreakdown is the itemized charge for one booking revision.
// Every line item is already rounded to a whole currency unit.
type PriceBreakdown struct {
	BaseRate              float64 `bson:"baseRate" json:"baseRate"`
	DurationHours         float64 `bson:"durationHours" json:"durationHours"`
	BaseAmount            float64 `bson:"baseAmount" json:"baseAmount"`
	SurgeMultiplier       float64 `bson:"surgeMultiplier" json:"surgeMultiplier"`
	SurgeAmount           float64 `bson:"surgeAmount" json:"surgeAmount"`
	LocationAdjustment    float64 `bson:"locationAdjustment" json:"locationAdjustment"`
	ExperiencePremium     float64 `bson:"experiencePremium" json:"experiencePremium"`
	EmergencyFee          float64 `bson:"emergencyFee" json:"emergencyFee"`
	RecurringDiscountRate float64 `bson:"recurringDiscountRate" json:"recurringDiscountRate"`
	RecurringDiscount     float64 `bson:"recurringDiscount" json:"recurringDiscount"`
	Subtotal              float64 `bson:"subtotal" json:"subtotal"`
	PlatformFee           float64 `bson:"platformFee" json:"platformFee"`
	Tax                   float64 `bson:"tax" json:"tax"`
	Total                 float64 `bson:"total" json:"total"`
	Currency              string  `bson:"currency,omitempty" json:"currency,omitempty"`
}

// ExperienceTier grades a worker for the experience premium.
type ExperienceTier string

const (
	TierBeginner     ExperienceTier = "beginner"
	TierIntermediate ExperienceTier = "intermediate"
	TierExpert       ExperienceTier = "expert"
	TierMaster       ExperienceTier = "master"
)
