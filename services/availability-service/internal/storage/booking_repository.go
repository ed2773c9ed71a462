package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/detailbook/libs/db"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
)

const statusConfirmed = "confirmed"

type BookingRepository struct {
	q db.Querier
}

func NewBookingRepository(q db.Querier) *BookingRepository {
	return &BookingRepository{q: q}
}

// FindConfirmedBookings lists confirmed bookings whose start lies in
// [dayStart, dayEnd], both bounds inclusive. A booking that starts before
// dayStart is not returned even if it runs into the window.
func (r *BookingRepository) FindConfirmedBookings(ctx context.Context, dayStart, dayEnd time.Time) ([]availability.Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT scheduled_start, scheduled_end
		FROM bookings
		WHERE status = $1
			AND scheduled_start >= $2
			AND scheduled_start <= $3
		ORDER BY scheduled_start ASC
	`, statusConfirmed, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		var b availability.Booking
		if err := rows.Scan(&b.ScheduledStart, &b.ScheduledEnd); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
