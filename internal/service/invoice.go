package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/pdf"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/storage"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// TaxRate is applied to the invoice subtotal.
var TaxRate = decimal.RequireFromString("0.19")

const invoiceNumberAttempts = 5

var invoiceTransitions = map[model.InvoiceStatus][]model.InvoiceStatus{
	model.InvoiceActive: {model.InvoicePaid, model.InvoiceVoid},
	model.InvoicePaid:   {model.InvoiceVoid},
}

// InvoiceService issues invoices for confirmed reservations and keeps
// their PDF documents in the file store.
type InvoiceService struct {
	db             *database.DB
	repos          Repos
	store          storage.Store
	renderer       pdf.Renderer
	publisher      queue.Publisher
	issuer         pdf.Issuer
	storageTimeout time.Duration
	now            func() time.Time
}

// InvoiceDeps are the collaborators of InvoiceService.  Store, Renderer
// and Publisher may be nil; the matching best-effort step is skipped.
type InvoiceDeps struct {
	Store          storage.Store
	Renderer       pdf.Renderer
	Publisher      queue.Publisher
	Issuer         pdf.Issuer
	StorageTimeout time.Duration
}

func NewInvoiceService(db *database.DB, r Repos, deps InvoiceDeps) *InvoiceService {
	if db == nil || r.Invoices == nil || r.Reservations == nil {
		panic("nil dependency passed to NewInvoiceService")
	}
	if deps.StorageTimeout <= 0 {
		deps.StorageTimeout = 30 * time.Second
	}
	return &InvoiceService{
		db:             db,
		repos:          r,
		store:          deps.Store,
		renderer:       deps.Renderer,
		publisher:      deps.Publisher,
		issuer:         deps.Issuer,
		storageTimeout: deps.StorageTimeout,
		now:            time.Now,
	}
}

// ComputeTotals returns subtotal, tax (rounded to cents) and total of the
// reservation lines.
func ComputeTotals(lines []model.ReservationRoom) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal)
	}
	tax = subtotal.Mul(TaxRate).Round(2)
	return subtotal, tax, subtotal.Add(tax)
}

// Generate issues the invoice of a confirmed reservation in its own
// transaction.
func (s *InvoiceService) Generate(ctx context.Context, reservationID, issuedBy uint64) (model.Invoice, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	committed := false
	defer rollback(tx, &committed)

	inv, err := s.GenerateTx(ctx, tx.Tx, reservationID, issuedBy)
	if err != nil {
		return model.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Invoice{}, apperror.Infra("commit failed", err)
	}
	committed = true
	return s.afterIssue(ctx, inv), nil
}

// GenerateTx issues the invoice inside the caller's transaction.  The
// reservation row is locked first so two confirmations cannot both
// insert; the unique key on reservation_id backs that up.
func (s *InvoiceService) GenerateTx(ctx context.Context, tx *sql.Tx, reservationID, issuedBy uint64) (model.Invoice, error) {
	res, err := s.repos.Reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return model.Invoice{}, dbErr(err, "reservation")
	}
	if res.Status != model.ReservationConfirmed {
		return model.Invoice{}, apperror.Validation("reservation is not eligible for invoicing")
	}
	exists, err := s.repos.Invoices.ExistsForReservationTx(ctx, tx, reservationID)
	if err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	if exists {
		return model.Invoice{}, apperror.Conflict("invoice already exists for this reservation")
	}
	lines, err := s.repos.Reservations.ListRooms(ctx, tx, reservationID)
	if err != nil {
		return model.Invoice{}, dbErr(err, "reservation")
	}
	subtotal, tax, total := ComputeTotals(lines)

	issuedAt := s.now()
	inv := model.Invoice{
		ReservationID:   res.ID,
		ClientID:        res.ClientID,
		IssuedBy:        issuedBy,
		IssuedAt:        issuedAt,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Status:          model.InvoiceActive,
		ReservationCode: res.Code,
	}
	if err := s.insertWithNumber(ctx, tx, &inv); err != nil {
		return model.Invoice{}, err
	}

	inv.Lines = make([]model.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		inv.Lines = append(inv.Lines, model.InvoiceLine{
			InvoiceID:   inv.ID,
			RoomID:      l.RoomID,
			Description: fmt.Sprintf("Room %s - %s", l.RoomNumber, l.TypeName),
			Nights:      l.Nights,
			UnitPrice:   l.PricePerNight,
			Subtotal:    l.Subtotal,
		})
	}
	if err := s.repos.Invoices.CreateLinesTx(ctx, tx, inv.ID, inv.Lines); err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	return inv, nil
}

// insertWithNumber inserts the header, drawing a fresh number after each
// clash on the number key.
func (s *InvoiceService) insertWithNumber(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	var err error
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		inv.Number = utils.InvoiceNumber(inv.IssuedAt.Add(time.Duration(attempt) * time.Millisecond))
		err = s.repos.Invoices.CreateTx(ctx, tx, inv)
		if err == nil {
			return nil
		}
		key, dup := repository.DuplicateKey(err)
		switch {
		case dup && key == repository.KeyInvoiceNumber:
			continue
		case dup && key == repository.KeyInvoiceReservation:
			return apperror.Conflict("invoice already exists for this reservation")
		default:
			return dbErr(err, "invoice")
		}
	}
	return apperror.Infra("could not allocate a unique invoice number", err)
}

// afterIssue stores the document and announces the invoice.  Failures
// are logged; the invoice stays valid without a document.
func (s *InvoiceService) afterIssue(ctx context.Context, inv model.Invoice) model.Invoice {
	ctx = context.WithoutCancel(ctx)
	full, err := s.repos.Invoices.GetByID(ctx, inv.ID)
	if err != nil {
		log.Printf("invoice: reload %d failed: %v", inv.ID, err)
		full = inv
	}
	if link, id, err := s.storeDocument(ctx, full); err != nil {
		log.Printf("invoice: document for %s not stored: %v", full.Number, err)
	} else {
		full.DocumentID, full.DocumentLink = &id, &link
	}
	if full.ClientEmail != "" {
		ev := queue.NewEvent(queue.EventInvoiceIssued, full.ClientEmail, full.ClientName)
		ev.Invoice = invoiceInfo(full)
		queue.PublishAsync(ctx, s.publisher, ev)
	}
	return full
}

// storeDocument renders, uploads and records the PDF of inv.
func (s *InvoiceService) storeDocument(ctx context.Context, inv model.Invoice) (link, id string, err error) {
	if s.renderer == nil || s.store == nil {
		return "", "", errors.New("document storage not configured")
	}
	doc, err := s.document(ctx, inv)
	if err != nil {
		return "", "", err
	}
	body, err := s.renderer.RenderInvoice(doc)
	if err != nil {
		return "", "", fmt.Errorf("render: %w", err)
	}
	uctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	f, err := s.store.Upload(uctx, storage.Object{
		Name:     utils.InvoiceFileName(inv.Number),
		Data:     body,
		MimeType: "application/pdf",
		Folder:   storage.FolderInvoices,
	})
	if err != nil {
		return "", "", fmt.Errorf("upload: %w", err)
	}
	if err := s.repos.Invoices.SetDocument(ctx, inv.ID, f.ID, f.ViewLink); err != nil {
		return "", "", fmt.Errorf("record document: %w", err)
	}
	return f.ViewLink, f.ID, nil
}

func (s *InvoiceService) document(ctx context.Context, inv model.Invoice) (pdf.InvoiceDocument, error) {
	doc := pdf.InvoiceDocument{
		Issuer:          s.issuer,
		Number:          inv.Number,
		IssuedAt:        inv.IssuedAt,
		ReservationCode: inv.ReservationCode,
		ClientName:      inv.ClientName,
		ClientEmail:     inv.ClientEmail,
		Subtotal:        inv.Subtotal,
		Tax:             inv.Tax,
		TaxRate:         TaxRate.Shift(2).String() + "%",
		Total:           inv.Total,
		VerifyText:      fmt.Sprintf("%s|%s|%s", inv.Number, inv.ReservationCode, inv.Total.StringFixed(2)),
	}
	if s.repos.Users != nil {
		if u, err := s.repos.Users.GetByID(ctx, inv.IssuedBy); err == nil {
			doc.IssuedBy = u.FullName
		}
	}
	res, err := s.repos.Reservations.GetByID(ctx, inv.ReservationID)
	if err != nil {
		return doc, fmt.Errorf("load reservation: %w", err)
	}
	doc.CheckIn, doc.CheckOut = res.CheckIn, res.CheckOut
	rooms, err := s.repos.Reservations.ListRooms(ctx, nil, inv.ReservationID)
	if err != nil {
		return doc, fmt.Errorf("load rooms: %w", err)
	}
	for _, l := range rooms {
		doc.Lines = append(doc.Lines, pdf.Line{
			Room:        l.RoomNumber,
			Description: l.TypeName,
			Nights:      l.Nights,
			UnitPrice:   l.PricePerNight,
			Subtotal:    l.Subtotal,
		})
	}
	return doc, nil
}

// RegenerateDocument retries the document of an invoice stored without
// one.  Used by the scheduler.
func (s *InvoiceService) RegenerateDocument(ctx context.Context, id uint64) error {
	inv, err := s.repos.Invoices.GetByID(ctx, id)
	if err != nil {
		return dbErr(err, "invoice")
	}
	if inv.DocumentLink != nil {
		return nil
	}
	if _, _, err := s.storeDocument(ctx, inv); err != nil {
		return apperror.Infra("document generation failed", err)
	}
	return nil
}

// RetryMissingDocuments regenerates up to limit missing documents and
// returns how many succeeded.
func (s *InvoiceService) RetryMissingDocuments(ctx context.Context, limit int) (int, error) {
	ids, err := s.repos.Invoices.MissingDocument(ctx, limit)
	if err != nil {
		return 0, dbErr(err, "invoice")
	}
	done := 0
	for _, id := range ids {
		if err := s.RegenerateDocument(ctx, id); err != nil {
			log.Printf("invoice: retry document %d: %v", id, err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := s.repos.Invoices.GetByID(ctx, id)
	return inv, dbErr(err, "invoice")
}

func (s *InvoiceService) List(ctx context.Context, f model.InvoiceFilter) ([]model.Invoice, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.Validationf("unknown status %q", f.Status)
	}
	list, err := s.repos.Invoices.List(ctx, f)
	return list, dbErr(err, "invoice")
}

// UpdateStatus moves an invoice along active -> paid -> void.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uint64, to model.InvoiceStatus) (model.Invoice, error) {
	if !to.Valid() {
		return model.Invoice{}, apperror.Validationf("unknown status %q", to)
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	committed := false
	defer rollback(tx, &committed)

	from, err := s.repos.Invoices.GetStatusForUpdateTx(ctx, tx.Tx, id)
	if err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	if from == model.InvoiceVoid {
		return model.Invoice{}, apperror.Conflict("invoice is void and cannot change")
	}
	if !canTransitionInvoice(from, to) {
		return model.Invoice{}, apperror.Validationf("cannot change invoice from %s to %s", from, to)
	}
	if err := s.repos.Invoices.UpdateStatusTx(ctx, tx.Tx, id, to); err != nil {
		return model.Invoice{}, dbErr(err, "invoice")
	}
	if err := tx.Commit(); err != nil {
		return model.Invoice{}, apperror.Infra("commit failed", err)
	}
	committed = true
	return s.Get(ctx, id)
}

// Void is UpdateStatus(void).
func (s *InvoiceService) Void(ctx context.Context, id uint64) (model.Invoice, error) {
	return s.UpdateStatus(ctx, id, model.InvoiceVoid)
}

func canTransitionInvoice(from, to model.InvoiceStatus) bool {
	for _, s := range invoiceTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invoiceInfo(inv model.Invoice) *queue.InvoiceInfo {
	info := &queue.InvoiceInfo{
		ID:       inv.ID,
		Number:   inv.Number,
		Subtotal: inv.Subtotal.StringFixed(2),
		Tax:      inv.Tax.StringFixed(2),
		Total:    inv.Total.StringFixed(2),
	}
	if inv.DocumentLink != nil {
		info.DocumentLink = *inv.DocumentLink
	}
	return info
}
