package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Unique keys on the invoices table, as named in the schema.
const (
	KeyInvoiceNumber      = "uq_invoices_number"
	KeyInvoiceReservation = "uq_invoices_reservation"
)

// InvoiceRepo stores invoice headers and lines.
type InvoiceRepo struct{ db *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

const invoiceSelect = `SELECT f.id, f.number, f.reservation_id, f.client_id, f.issued_by, f.issued_at, f.subtotal, f.tax,
       f.total, f.status, f.document_id, f.document_link, f.created_at, f.updated_at,
       r.code, c.first_name, c.last_name, c.email
  FROM invoices f
  JOIN reservations r ON r.id = f.reservation_id
  JOIN clients c ON c.id = f.client_id`

// ExistsForReservationTx reports whether an invoice was already issued for
// the reservation.  Run after locking the reservation row.
func (r *InvoiceRepo) ExistsForReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices WHERE reservation_id = ?", reservationID).Scan(&n)
	return n > 0, err
}

// CreateTx inserts the header and fills ID.  A clash on the number or the
// reservation key is returned as *DuplicateError naming the key; MySQL
// keeps the transaction usable so the caller may retry with a new number.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (number, reservation_id, client_id, issued_by, issued_at, subtotal, tax, total, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Number, inv.ReservationID, inv.ClientID, inv.IssuedBy, inv.IssuedAt,
		inv.Subtotal, inv.Tax, inv.Total, string(inv.Status))
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// CreateLinesTx bulk inserts the invoice lines.
func (r *InvoiceRepo) CreateLinesTx(ctx context.Context, tx *sql.Tx, invoiceID uint64, lines []model.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := "INSERT INTO invoice_lines (invoice_id, room_id, description, nights, unit_price, subtotal) VALUES "
	args := make([]any, 0, len(lines)*6)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, invoiceID, l.RoomID, l.Description, l.Nights, l.UnitPrice, l.Subtotal)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID loads a header with its lines.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, invoiceSelect+" WHERE f.id = ?", id))
	if err != nil {
		return model.Invoice{}, err
	}
	inv.Lines, err = r.lines(ctx, id)
	return inv, err
}

// IDForReservation returns the invoice id of a reservation.
func (r *InvoiceRepo) IDForReservation(ctx context.Context, reservationID uint64) (uint64, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM invoices WHERE reservation_id = ?", reservationID).Scan(&id)
	return id, mapErr(err)
}

// List returns headers without lines, newest first.
func (r *InvoiceRepo) List(ctx context.Context, f model.InvoiceFilter) ([]model.Invoice, error) {
	query := invoiceSelect + " WHERE 1=1"
	var args []any
	if f.Status != "" {
		query += " AND f.status = ?"
		args = append(args, string(f.Status))
	}
	if f.ClientID != 0 {
		query += " AND f.client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.ReservationID != 0 {
		query += " AND f.reservation_id = ?"
		args = append(args, f.ReservationID)
	}
	query += " ORDER BY f.issued_at DESC, f.id DESC LIMIT ? OFFSET ?"
	args = append(args, pageLimit(f.Limit), f.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// GetStatusForUpdateTx locks a header and returns its status.
func (r *InvoiceRepo) GetStatusForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.InvoiceStatus, error) {
	var s string
	err := tx.QueryRowContext(ctx, "SELECT status FROM invoices WHERE id = ? FOR UPDATE", id).Scan(&s)
	return model.InvoiceStatus(s), mapErr(err)
}

func (r *InvoiceRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.InvoiceStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE invoices SET status = ? WHERE id = ?", string(status), id)
	return err
}

// SetDocument records the stored PDF.
func (r *InvoiceRepo) SetDocument(ctx context.Context, id uint64, documentID, link string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE invoices SET document_id = ?, document_link = ? WHERE id = ?", documentID, link, id)
	return err
}

// MissingDocument lists ids of non-void invoices without a stored PDF,
// oldest first.
func (r *InvoiceRepo) MissingDocument(ctx context.Context, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM invoices WHERE document_link IS NULL AND status <> 'void' ORDER BY id LIMIT ?", pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *InvoiceRepo) lines(ctx context.Context, invoiceID uint64) ([]model.InvoiceLine, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, invoice_id, room_id, description, nights, unit_price, subtotal FROM invoice_lines WHERE invoice_id = ? ORDER BY id",
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.InvoiceLine{}
	for rows.Next() {
		var l model.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.RoomID, &l.Description, &l.Nights, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanInvoice(s rowScanner) (model.Invoice, error) {
	var inv model.Invoice
	var status, first, last string
	var docID, docLink sql.NullString
	err := s.Scan(&inv.ID, &inv.Number, &inv.ReservationID, &inv.ClientID, &inv.IssuedBy, &inv.IssuedAt,
		&inv.Subtotal, &inv.Tax, &inv.Total, &status, &docID, &docLink, &inv.CreatedAt, &inv.UpdatedAt,
		&inv.ReservationCode, &first, &last, &inv.ClientEmail)
	if err != nil {
		return model.Invoice{}, mapErr(err)
	}
	inv.Status = model.InvoiceStatus(status)
	inv.ClientName = strings.TrimSpace(first + " " + last)
	if docID.Valid {
		inv.DocumentID = &docID.String
	}
	if docLink.Valid {
		inv.DocumentLink = &docLink.String
	}
	return inv, nil
}
