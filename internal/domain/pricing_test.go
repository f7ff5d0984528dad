package domain

import "testing"

func TestPriceOrderMixedCart(t *testing.T) {
	items := []OrderLineItem{
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "course-a"}, Name: "Course A", Quantity: 1, UnitPrice: 500},
		{Ref: CatalogRef{Kind: ItemKindProduct, ID: "prod-b"}, Name: "Product B", Quantity: 2, UnitPrice: 1000},
	}

	breakdown := PriceOrder(items, DefaultTaxRate, DefaultShippingFee)

	if breakdown.ItemsPrice != 2500 {
		t.Fatalf("expected items price 2500, got %v", breakdown.ItemsPrice)
	}
	if breakdown.TaxPrice != 450 {
		t.Fatalf("expected tax price 450, got %v", breakdown.TaxPrice)
	}
	if breakdown.ShippingPrice != 100 {
		t.Fatalf("expected shipping price 100, got %v", breakdown.ShippingPrice)
	}
	if breakdown.TotalPrice != 3050 {
		t.Fatalf("expected total price 3050, got %v", breakdown.TotalPrice)
	}
}

func TestPriceOrderDigitalOnlySkipsShipping(t *testing.T) {
	items := []OrderLineItem{
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "course-a"}, Name: "Course A", Quantity: 1, UnitPrice: 500},
	}

	breakdown := PriceOrder(items, DefaultTaxRate, DefaultShippingFee)

	if breakdown.ShippingPrice != 0 {
		t.Fatalf("expected zero shipping for digital-only order, got %v", breakdown.ShippingPrice)
	}
	if breakdown.TotalPrice != 590 {
		t.Fatalf("expected total 590, got %v", breakdown.TotalPrice)
	}
}

func TestPriceOrderRoundsComponents(t *testing.T) {
	items := []OrderLineItem{
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "course-a"}, Quantity: 3, UnitPrice: 33.33},
	}

	breakdown := PriceOrder(items, DefaultTaxRate, DefaultShippingFee)

	if breakdown.ItemsPrice != 99.99 {
		t.Fatalf("expected items price 99.99, got %v", breakdown.ItemsPrice)
	}
	if breakdown.TaxPrice != 18.0 {
		t.Fatalf("expected tax price 18.00, got %v", breakdown.TaxPrice)
	}
	if breakdown.TotalPrice != RoundMoney(breakdown.ItemsPrice+breakdown.TaxPrice+breakdown.ShippingPrice) {
		t.Fatalf("total %v does not equal rounded component sum", breakdown.TotalPrice)
	}
}

func TestPriceOrderIgnoresNonPositiveQuantities(t *testing.T) {
	items := []OrderLineItem{
		{Ref: CatalogRef{Kind: ItemKindProduct, ID: "prod-a"}, Quantity: 0, UnitPrice: 100},
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "course-b"}, Quantity: 2, UnitPrice: 250},
	}

	breakdown := PriceOrder(items, DefaultTaxRate, DefaultShippingFee)

	if breakdown.ItemsPrice != 500 {
		t.Fatalf("expected items price 500, got %v", breakdown.ItemsPrice)
	}
	// The zero-quantity product line still marks the order as physical.
	if breakdown.ShippingPrice != DefaultShippingFee {
		t.Fatalf("expected shipping %v, got %v", DefaultShippingFee, breakdown.ShippingPrice)
	}
}

func TestCartTotalMatchesLineSum(t *testing.T) {
	items := []CartItem{
		{Ref: CatalogRef{Kind: ItemKindProduct, ID: "p1"}, Quantity: 2, UnitPrice: 19.99},
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "c1"}, Quantity: 1, UnitPrice: 500},
		{Ref: CatalogRef{Kind: ItemKindCourse, ID: "c2"}, Quantity: -1, UnitPrice: 999},
	}

	if got := CartTotal(items); got != 539.98 {
		t.Fatalf("expected cart total 539.98, got %v", got)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{3050, 305000},
		{590, 59000},
		{19.995, 2000},
		{0, 0},
	}
	for _, tc := range cases {
		if got := MinorUnits(tc.in); got != tc.want {
			t.Fatalf("MinorUnits(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
