package domain

// Customer is a regular rider the driver keeps track of.
type Customer struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	TotalSpent float64 `json:"total_spent"`
	TotalTrips int     `json:"total_trips"`
}
