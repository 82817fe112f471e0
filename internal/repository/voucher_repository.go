package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// VoucherRepo stores payment proofs.  The file itself lives in the file
// store; rows keep its id and links.
type VoucherRepo struct{ db *sql.DB }

func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherCols = `id, reservation_id, method, amount, paid_on, file_id, file_name, mime_type, size_bytes,
       view_link, download_link, status, notes, reviewed_by, reviewed_at, created_at, updated_at`

// CreateTx inserts v and reads the row back.
func (r *VoucherRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Voucher) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO vouchers (reservation_id, method, amount, paid_on, file_id, file_name, mime_type, size_bytes,
		                       view_link, download_link, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ReservationID, string(v.Method), v.Amount, v.PaidOn, v.FileID, v.FileName, v.MimeType, v.SizeBytes,
		v.ViewLink, v.DownloadLink, string(model.VoucherPending), v.Notes)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanVoucher(tx.QueryRowContext(ctx, "SELECT "+voucherCols+" FROM vouchers WHERE id = ?", id))
	if err != nil {
		return err
	}
	*v = got
	return nil
}

func (r *VoucherRepo) GetByID(ctx context.Context, id uint64) (model.Voucher, error) {
	return scanVoucher(r.db.QueryRowContext(ctx, "SELECT "+voucherCols+" FROM vouchers WHERE id = ?", id))
}

// GetForUpdateTx loads and locks a voucher row.
func (r *VoucherRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Voucher, error) {
	return scanVoucher(tx.QueryRowContext(ctx, "SELECT "+voucherCols+" FROM vouchers WHERE id = ? FOR UPDATE", id))
}

// VoucherFilter narrows voucher listings.
type VoucherFilter struct {
	ReservationID uint64
	ClientID      uint64
	Status        model.VoucherStatus
}

// List returns vouchers newest first.
func (r *VoucherRepo) List(ctx context.Context, f VoucherFilter) ([]model.Voucher, error) {
	query := "SELECT " + voucherCols + " FROM vouchers WHERE 1=1"
	var args []any
	if f.ReservationID != 0 {
		query += " AND reservation_id = ?"
		args = append(args, f.ReservationID)
	}
	if f.ClientID != 0 {
		query += " AND reservation_id IN (SELECT id FROM reservations WHERE client_id = ?)"
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReviewTx records the review outcome.
func (r *VoucherRepo) ReviewTx(ctx context.Context, tx *sql.Tx, id uint64, status model.VoucherStatus, notes string, reviewer uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE vouchers SET status = ?, notes = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?",
		string(status), notes, reviewer, at, id)
	return err
}

func scanVoucher(s rowScanner) (model.Voucher, error) {
	var v model.Voucher
	var method, status string
	var notes sql.NullString
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	err := s.Scan(&v.ID, &v.ReservationID, &method, &v.Amount, &v.PaidOn, &v.FileID, &v.FileName, &v.MimeType,
		&v.SizeBytes, &v.ViewLink, &v.DownloadLink, &status, &notes, &reviewedBy, &reviewedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return model.Voucher{}, mapErr(err)
	}
	v.Method = model.PaymentMethod(method)
	v.Status = model.VoucherStatus(status)
	v.Notes = notes.String
	if reviewedBy.Valid {
		id := uint64(reviewedBy.Int64)
		v.ReviewedBy = &id
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		v.ReviewedAt = &t
	}
	return v, nil
}
