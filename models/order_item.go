package models

// LineItem is the canonical line item, whatever shape it was persisted in.
type LineItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Observation string  `json:"observation,omitempty"`
}

// Subtotal is price times quantity.
func (i LineItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// ProductSales is one row of the top selling products aggregate.
type ProductSales struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}
