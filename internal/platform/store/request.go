package store

import (
	"errors"
	"fmt"

	"github.com/tarotware/paywall/pkg/types"
)

// ErrNoOfferToken means an Android purchase was attempted for a product
// whose metadata carries no resolvable offer token.
var ErrNoOfferToken = errors.New("no offer token resolvable for product")

// PurchaseRequest is the platform-specific purchase payload. The two
// platforms take differently shaped requests, so it is a sealed tagged
// variant rather than one struct with optional fields.
type PurchaseRequest interface {
	isPurchaseRequest()
	ProductID() string
}

// IOSRequest purchases by bare SKU.
type IOSRequest struct {
	SKU string
}

func (IOSRequest) isPurchaseRequest() {}

func (r IOSRequest) ProductID() string { return r.SKU }

// AndroidRequest purchases by SKU list plus the offer token selected from
// the product's subscription offers.
type AndroidRequest struct {
	SKUs       []string
	OfferToken string
}

func (AndroidRequest) isPurchaseRequest() {}

func (r AndroidRequest) ProductID() string {
	if len(r.SKUs) == 0 {
		return ""
	}
	return r.SKUs[0]
}

// NewPurchaseRequest builds the request shape for the platform. Android
// fails fast when the product has no offer token; issuing the request
// without one would be rejected by the platform with a less useful error.
func NewPurchaseRequest(platform types.Platform, product *types.ProductDescriptor) (PurchaseRequest, error) {
	if product == nil || product.ProductID == "" {
		return nil, fmt.Errorf("purchase request needs a product")
	}
	switch platform {
	case types.PlatformAndroid:
		token := product.FirstOfferToken()
		if token == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoOfferToken, product.ProductID)
		}
		return AndroidRequest{SKUs: []string{product.ProductID}, OfferToken: token}, nil
	default:
		return IOSRequest{SKU: product.ProductID}, nil
	}
}
