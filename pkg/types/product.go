package types

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

type PaymentProvider string

const (
	PaymentProviderApple  PaymentProvider = "apple"
	PaymentProviderGoogle PaymentProvider = "google"
)

// ProviderForPlatform maps the device platform onto the store provider
// whose receipts it produces.
func ProviderForPlatform(p Platform) PaymentProvider {
	if p == PlatformAndroid {
		return PaymentProviderGoogle
	}
	return PaymentProviderApple
}

// SubscriptionOffer is the platform-specific offer metadata attached to a
// product. On Android an offer token is required to complete a purchase.
type SubscriptionOffer struct {
	OfferToken string `json:"offer_token"`
	BasePlanID string `json:"base_plan_id"`
}

// ProductDescriptor is a store-reported purchasable subscription. It is
// fetched fresh per session and never persisted as authoritative.
type ProductDescriptor struct {
	ProductID      string              `json:"product_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Price          string              `json:"price"`
	LocalizedPrice string              `json:"localized_price"`
	Currency       string              `json:"currency"`
	Type           SubscriptionType    `json:"type"`
	Offers         []SubscriptionOffer `json:"offers,omitempty"`
}

// FirstOfferToken returns the offer token needed to purchase on Android,
// or "" when none is resolvable.
func (p *ProductDescriptor) FirstOfferToken() string {
	if p == nil {
		return ""
	}
	for _, o := range p.Offers {
		if o.OfferToken != "" {
			return o.OfferToken
		}
	}
	return ""
}

// PaymentItem binds a store product id to a subscription type. The set of
// known items comes from configuration.
type PaymentItem struct {
	ID             string           `json:"id" mapstructure:"id"`
	ProviderItemID string           `json:"provider_item_id" mapstructure:"provider_item_id"`
	Type           SubscriptionType `json:"type" mapstructure:"type"`
}
