package service

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/storage"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// MaxVoucherSize bounds uploaded payment proofs.
const MaxVoucherSize = 10 << 20

var voucherTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// VoucherService accepts payment proofs and drives the reservation
// workflow from their review.
type VoucherService struct {
	db             *database.DB
	repos          Repos
	reservations   *ReservationService
	store          storage.Store
	publisher      queue.Publisher
	storageTimeout time.Duration
	now            func() time.Time
}

func NewVoucherService(db *database.DB, r Repos, reservations *ReservationService, store storage.Store, pub queue.Publisher, storageTimeout time.Duration) *VoucherService {
	if db == nil || r.Vouchers == nil || reservations == nil {
		panic("nil dependency passed to NewVoucherService")
	}
	if storageTimeout <= 0 {
		storageTimeout = 30 * time.Second
	}
	return &VoucherService{db: db, repos: r, reservations: reservations, store: store, publisher: pub,
		storageTimeout: storageTimeout, now: time.Now}
}

// DetectType sniffs the content type from the file bytes, ignoring any
// parameters.
func DetectType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// Submit stores the file, records the voucher and holds the reservation's
// free rooms.  The reservation itself stays pending until review.
func (s *VoucherService) Submit(ctx context.Context, actor Actor, cmd SubmitVoucher) (model.Voucher, error) {
	if err := check(cmd); err != nil {
		return model.Voucher{}, err
	}
	if err := positive("amount", cmd.Amount); err != nil {
		return model.Voucher{}, err
	}
	if len(cmd.File) == 0 {
		return model.Voucher{}, apperror.Validation("file is empty")
	}
	if len(cmd.File) > MaxVoucherSize {
		return model.Voucher{}, apperror.Validation("file exceeds the 10 MiB limit")
	}
	mimeType := DetectType(cmd.File)
	if !voucherTypes[mimeType] {
		return model.Voucher{}, apperror.Validationf("unsupported file type %s (allowed: JPEG, PNG, PDF)", mimeType)
	}

	res, err := s.repos.Reservations.GetByID(ctx, cmd.ReservationID)
	if err != nil {
		return model.Voucher{}, dbErr(err, "reservation")
	}
	if own, scoped, err := s.reservations.ownClientID(ctx, actor); err != nil {
		return model.Voucher{}, err
	} else if scoped && own != res.ClientID {
		return model.Voucher{}, apperror.NotFound("reservation not found")
	}
	if res.Status.Terminal() {
		return model.Voucher{}, apperror.Validation("reservation is cancelled")
	}
	if s.store == nil {
		return model.Voucher{}, apperror.Infra("file storage not configured", nil)
	}

	now := s.now()
	name := utils.VoucherFileName(res.ID, cmd.FileName, mimeType, now)
	uctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	file, err := s.store.Upload(uctx, storage.Object{Name: name, Data: cmd.File, MimeType: mimeType, Folder: storage.FolderVouchers})
	cancel()
	if err != nil {
		return model.Voucher{}, apperror.Infra("could not store the voucher file", err)
	}

	v := model.Voucher{
		ReservationID: res.ID,
		Method:        cmd.Method,
		Amount:        cmd.Amount,
		PaidOn:        cmd.PaidOn,
		FileID:        file.ID,
		FileName:      name,
		MimeType:      mimeType,
		SizeBytes:     int64(len(cmd.File)),
		ViewLink:      file.ViewLink,
		DownloadLink:  file.DownloadLink,
		Notes:         cmd.Notes,
	}
	if err := s.recordTx(ctx, &v); err != nil {
		s.discard(ctx, file.ID)
		return model.Voucher{}, err
	}

	if client, err := s.repos.Clients.GetByID(ctx, res.ClientID); err == nil {
		d := model.ReservationDetail{Reservation: res, ClientName: client.FullName(), ClientEmail: client.Email}
		d.Rooms, _ = s.repos.Reservations.ListRooms(ctx, nil, res.ID)
		ev := reservationEvent(queue.EventVoucherReceived, d)
		ev.Voucher = &queue.VoucherInfo{ID: v.ID, Method: string(v.Method), Amount: v.Amount.StringFixed(2),
			FileName: v.FileName, ViewLink: v.ViewLink}
		queue.PublishAsync(ctx, s.publisher, ev)
	}
	return v, nil
}

func (s *VoucherService) recordTx(ctx context.Context, v *model.Voucher) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return dbErr(err, "voucher")
	}
	committed := false
	defer rollback(tx, &committed)

	res, err := s.repos.Reservations.GetForUpdateTx(ctx, tx.Tx, v.ReservationID)
	if err != nil {
		return dbErr(err, "reservation")
	}
	if res.Status.Terminal() {
		return apperror.Validation("reservation is cancelled")
	}
	if err := s.repos.Vouchers.CreateTx(ctx, tx.Tx, v); err != nil {
		return dbErr(err, "voucher")
	}
	lines, err := s.repos.Reservations.ListRooms(ctx, tx.Tx, res.ID)
	if err != nil {
		return dbErr(err, "reservation")
	}
	if _, err := s.repos.Rooms.UpdateStatusTx(ctx, tx.Tx, repository.RoomIDs(lines), model.RoomHeld, model.RoomFree); err != nil {
		return dbErr(err, "room")
	}
	if err := tx.Commit(); err != nil {
		return apperror.Infra("commit failed", err)
	}
	committed = true
	return nil
}

// discard removes an uploaded file whose voucher row was never written.
func (s *VoucherService) discard(ctx context.Context, fileID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storageTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, fileID); err != nil {
		log.Printf("voucher: orphan file %s not deleted: %v", fileID, err)
	}
}

// Review records the staff decision.  On a pending reservation approval
// confirms it (which issues the invoice) and rejection cancels it; other
// reservations only get the voucher row updated.
func (s *VoucherService) Review(ctx context.Context, actor Actor, cmd ReviewVoucher) (model.Voucher, error) {
	if err := check(cmd); err != nil {
		return model.Voucher{}, err
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.Voucher{}, dbErr(err, "voucher")
	}
	committed := false
	defer rollback(tx, &committed)

	v, err := s.repos.Vouchers.GetForUpdateTx(ctx, tx.Tx, cmd.VoucherID)
	if err != nil {
		return model.Voucher{}, dbErr(err, "voucher")
	}
	if v.Status.Terminal() {
		return model.Voucher{}, apperror.Conflictf("voucher was already %s", v.Status)
	}
	if err := s.repos.Vouchers.ReviewTx(ctx, tx.Tx, v.ID, cmd.Outcome, cmd.Notes, actor.UserID, s.now().UTC()); err != nil {
		return model.Voucher{}, dbErr(err, "voucher")
	}

	res, err := s.repos.Reservations.GetForUpdateTx(ctx, tx.Tx, v.ReservationID)
	if err != nil {
		return model.Voucher{}, dbErr(err, "reservation")
	}
	target := model.ReservationCancelled
	if cmd.Outcome == model.VoucherConfirmed {
		target = model.ReservationConfirmed
	}
	var issued *model.Invoice
	event := ""
	// Only a pending reservation follows its voucher.  A confirmed one
	// leaves that state through the cancel endpoint alone.
	if res.Status == model.ReservationPending {
		issued, err = s.reservations.transitionTx(ctx, tx.Tx, &res, target, actor.UserID)
		if err != nil {
			return model.Voucher{}, err
		}
		event = statusEvent(target)
	}
	if err := tx.Commit(); err != nil {
		return model.Voucher{}, apperror.Infra("commit failed", err)
	}
	committed = true

	s.reservations.afterTransition(ctx, issued)
	if event != "" {
		if d, err := s.reservations.detail(ctx, res); err == nil {
			queue.PublishAsync(ctx, s.publisher, reservationEvent(event, d))
		}
	}
	out, err := s.repos.Vouchers.GetByID(ctx, v.ID)
	return out, dbErr(err, "voucher")
}

// Get returns a voucher; client users only see their own.
func (s *VoucherService) Get(ctx context.Context, actor Actor, id uint64) (model.Voucher, error) {
	v, err := s.repos.Vouchers.GetByID(ctx, id)
	if err != nil {
		return model.Voucher{}, dbErr(err, "voucher")
	}
	own, scoped, err := s.reservations.ownClientID(ctx, actor)
	if err != nil {
		return model.Voucher{}, err
	}
	if scoped {
		res, err := s.repos.Reservations.GetByID(ctx, v.ReservationID)
		if err != nil || res.ClientID != own {
			return model.Voucher{}, apperror.NotFound("voucher not found")
		}
	}
	return v, nil
}

func (s *VoucherService) List(ctx context.Context, actor Actor, f repository.VoucherFilter) ([]model.Voucher, error) {
	own, scoped, err := s.reservations.ownClientID(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scoped {
		if own == 0 {
			return []model.Voucher{}, nil
		}
		f.ClientID = own
	}
	list, err := s.repos.Vouchers.List(ctx, f)
	return list, dbErr(err, "voucher")
}
