package domain

import "math"

// Default pricing parameters applied at checkout. Tax is a flat GST-style
// rate on the item subtotal; shipping is a flat fee charged only when the
// cart carries at least one physical product.
const (
	DefaultTaxRate     = 0.18
	DefaultShippingFee = 100.0
)

// PriceBreakdown captures the monetary results of pricing a cart.
type PriceBreakdown struct {
	ItemsPrice    float64
	TaxPrice      float64
	ShippingPrice float64
	TotalPrice    float64
}

// RoundMoney rounds a major-unit amount to two decimal places,
// half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// MinorUnits converts a major-unit amount to the smallest currency unit the
// payment gateway expects.
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

// CartTotal sums unitPrice x quantity over the given items. Lines with a
// non-positive quantity contribute nothing.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		total += item.UnitPrice * float64(item.Quantity)
	}
	return RoundMoney(total)
}

// PriceOrder computes the full checkout breakdown for the given line items.
// Deterministic and side-effect free: itemsPrice is the line-sum, tax is
// taxRate over itemsPrice, shipping is the flat fee iff a physical product
// is present, and every component is rounded to two decimals.
func PriceOrder(items []OrderLineItem, taxRate, shippingFee float64) PriceBreakdown {
	var itemsPrice float64
	physical := false
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		itemsPrice += item.UnitPrice * float64(item.Quantity)
		if item.Ref.Kind == ItemKindProduct {
			physical = true
		}
	}

	itemsPrice = RoundMoney(itemsPrice)
	taxPrice := RoundMoney(itemsPrice * taxRate)

	var shippingPrice float64
	if physical {
		shippingPrice = RoundMoney(shippingFee)
	}

	return PriceBreakdown{
		ItemsPrice:    itemsPrice,
		TaxPrice:      taxPrice,
		ShippingPrice: shippingPrice,
		TotalPrice:    RoundMoney(itemsPrice + taxPrice + shippingPrice),
	}
}
