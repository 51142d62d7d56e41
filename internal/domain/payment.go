package domain

// PaymentMethod represents how the rider settled the fare.
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "CASH"
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodExternalPayout PaymentMethod = "EXTERNAL_PAYOUT"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodExternalPayout:
		return true
	}
	return false
}
