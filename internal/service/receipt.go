package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ridelog/internal/domain"
)

// Receipt builds the receipt for a stored trip.
func (s *LedgerService) Receipt(ctx context.Context, tripID string) (*domain.Receipt, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	return BuildReceipt(trip), nil
}

// BuildReceipt summarizes a completed trip.
func BuildReceipt(trip *domain.Trip) *domain.Receipt {
	receipt := &domain.Receipt{
		TripID:        trip.ID,
		Pickup:        trip.Pickup,
		Dropoff:       trip.Dropoff,
		Fare:          trip.Fare,
		Commission:    trip.Commission,
		NetEarnings:   trip.Fare - trip.Commission - trip.FuelCostEstimate,
		PaymentMethod: trip.PaymentMethod,
		Duration:      trip.Duration(),
		DistanceKm:    trip.DistanceKm,
		StartedAt:     trip.StartedAt,
	}
	if trip.EndedAt != nil {
		receipt.EndedAt = *trip.EndedAt
	}
	return receipt
}

// FormatReceipt formats the receipt as plain text for printing or sharing.
func FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder

	b.WriteString("=====================================\n")
	b.WriteString("            TRIP RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Trip ID: %s\n", receipt.TripID)
	fmt.Fprintf(&b, "Date:    %s\n", receipt.StartedAt.Format("Jan 02, 2006 3:04 PM"))
	b.WriteString("\nTRIP DETAILS\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Pickup:   %s\n", receipt.Pickup)
	fmt.Fprintf(&b, "Dropoff:  %s\n", receipt.Dropoff)
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(receipt.Duration))
	fmt.Fprintf(&b, "Distance: %s km\n", formatFloat(receipt.DistanceKm))
	b.WriteString("\nEARNINGS (GHS)\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Fare:        %s\n", formatFloat(receipt.Fare))
	fmt.Fprintf(&b, "Commission: -%s\n", formatFloat(receipt.Commission))
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "NET:         %s\n", formatFloat(receipt.NetEarnings))
	b.WriteString("\nPAYMENT\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Method: %s\n", receipt.PaymentMethod)
	b.WriteString("=====================================\n")

	return b.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d min", minutes)
}
