package models

// SellerStats are the seller aggregates read by investigations.
type SellerStats struct {
	TotalOrders int64   `json:"total_orders"`
	TotalClaims int64   `json:"total_claims"`
	Rating      float64 `json:"rating"`
}

// ClaimRate is claims per order; zero when the seller has no orders.
func (s SellerStats) ClaimRate() float64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return float64(s.TotalClaims) / float64(s.TotalOrders)
}

type BuyerStats struct {
	TotalOrders int64 `json:"total_orders"`
	TotalClaims int64 `json:"total_claims"`
}

func (s BuyerStats) ClaimRate() float64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return float64(s.TotalClaims) / float64(s.TotalOrders)
}
