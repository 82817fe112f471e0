package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// StatsRepo runs the dashboard aggregate queries.
type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Load gathers every figure of the dashboard.  since bounds the monthly
// revenue series.
func (r *StatsRepo) Load(ctx context.Context, since time.Time) (model.Stats, error) {
	var s model.Stats

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*),
	        COUNT(CASE WHEN status = 'pending' THEN 1 END),
	        COUNT(CASE WHEN status = 'confirmed' THEN 1 END),
	        COUNT(CASE WHEN status = 'cancelled' THEN 1 END),
	        COALESCE(SUM(CASE WHEN status <> 'cancelled' THEN total ELSE 0 END), 0),
	        COUNT(DISTINCT client_id)
	   FROM reservations`).Scan(&s.Reservations.Total, &s.Reservations.Pending, &s.Reservations.Confirmed,
		&s.Reservations.Cancelled, &s.Reservations.EstimatedRevenue, &s.UniqueClients)
	if err != nil {
		return s, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*),
	        COUNT(CASE WHEN status = 'free' THEN 1 END),
	        COUNT(CASE WHEN status = 'held' THEN 1 END),
	        COUNT(CASE WHEN status = 'occupied' THEN 1 END),
	        COUNT(CASE WHEN status = 'maintenance' THEN 1 END)
	   FROM rooms`).Scan(&s.Rooms.Total, &s.Rooms.Free, &s.Rooms.Held, &s.Rooms.Occupied, &s.Rooms.Maintenance)
	if err != nil {
		return s, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*),
	        COUNT(CASE WHEN status = 'active' THEN 1 END),
	        COUNT(CASE WHEN status = 'paid' THEN 1 END),
	        COUNT(CASE WHEN status = 'void' THEN 1 END),
	        COALESCE(SUM(CASE WHEN status <> 'void' THEN total ELSE 0 END), 0)
	   FROM invoices`).Scan(&s.Invoices.Total, &s.Invoices.Active, &s.Invoices.Paid, &s.Invoices.Void,
		&s.Invoices.BilledRevenue)
	if err != nil {
		return s, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT h.id, h.number, t.name, COUNT(rr.id) AS n
	   FROM rooms h
	   JOIN room_types t ON t.id = h.room_type_id
	   JOIN reservation_rooms rr ON rr.room_id = h.id
	   JOIN reservations r ON r.id = rr.reservation_id AND r.status <> 'cancelled'
	  GROUP BY h.id, h.number, t.name
	  ORDER BY n DESC, LENGTH(h.number), h.number
	  LIMIT 5`)
	if err != nil {
		return s, err
	}
	s.TopRooms = []model.RoomUsage{}
	for rows.Next() {
		var u model.RoomUsage
		if err := rows.Scan(&u.RoomID, &u.Number, &u.TypeName, &u.Reservations); err != nil {
			rows.Close()
			return s, err
		}
		s.TopRooms = append(s.TopRooms, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT DATE_FORMAT(issued_at, '%Y-%m') AS m, SUM(total)
	   FROM invoices
	  WHERE status <> 'void' AND issued_at >= ?
	  GROUP BY m
	  ORDER BY m`, since)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	s.MonthlyRevenue = []model.MonthRevenue{}
	for rows.Next() {
		var m model.MonthRevenue
		if err := rows.Scan(&m.Month, &m.Revenue); err != nil {
			return s, err
		}
		s.MonthlyRevenue = append(s.MonthlyRevenue, m)
	}
	return s, rows.Err()
}
