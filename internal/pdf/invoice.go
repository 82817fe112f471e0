// Package pdf renders invoice documents.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/yeqown/go-qrcode"
)

// Issuer identifies the hotel printed in the document header.
type Issuer struct {
	Name    string
	TaxID   string
	Address string
	Email   string
}

// Line is one billed room.
type Line struct {
	Room        string
	Description string
	Nights      int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// InvoiceDocument carries everything printed on an invoice.
type InvoiceDocument struct {
	Issuer          Issuer
	Number          string
	IssuedAt        time.Time
	IssuedBy        string
	ReservationCode string
	ClientName      string
	ClientEmail     string
	CheckIn         time.Time
	CheckOut        time.Time
	Lines           []Line
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	TaxRate         string // e.g. "19%"
	Total           decimal.Decimal
	// VerifyText is encoded as a QR code in the footer; empty skips it.
	VerifyText string
}

// Renderer produces the PDF bytes of an invoice.
type Renderer interface {
	RenderInvoice(doc InvoiceDocument) ([]byte, error)
}

// FPDF renders A4 invoices with go-pdf/fpdf.
type FPDF struct{}

func (FPDF) RenderInvoice(doc InvoiceDocument) ([]byte, error) {
	p := fpdf.New("P", "mm", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.SetTitle(doc.Number, true)
	p.SetMargins(15, 15, 15)
	p.AddPage()

	// header
	p.SetFont("Helvetica", "B", 18)
	p.SetTextColor(46, 125, 50)
	p.CellFormat(120, 9, tr(doc.Issuer.Name), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(0, 9, "INVOICE", "", 1, "R", false, 0, "")
	p.SetTextColor(90, 90, 90)
	p.SetFont("Helvetica", "", 9)
	p.CellFormat(120, 5, tr(doc.Issuer.Address), "", 0, "L", false, 0, "")
	p.CellFormat(0, 5, "No. "+doc.Number, "", 1, "R", false, 0, "")
	contact := doc.Issuer.Email
	if doc.Issuer.TaxID != "" {
		contact = "Tax ID " + doc.Issuer.TaxID + "  " + contact
	}
	p.CellFormat(120, 5, tr(contact), "", 0, "L", false, 0, "")
	p.CellFormat(0, 5, "Date: "+doc.IssuedAt.Format("2006-01-02"), "", 1, "R", false, 0, "")
	p.Ln(8)

	section := func(title string) {
		p.SetFont("Helvetica", "B", 11)
		p.SetTextColor(46, 125, 50)
		p.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
		p.SetFont("Helvetica", "", 10)
		p.SetTextColor(0, 0, 0)
	}

	section("Client")
	p.CellFormat(0, 5, tr(doc.ClientName), "", 1, "L", false, 0, "")
	p.CellFormat(0, 5, tr(doc.ClientEmail), "", 1, "L", false, 0, "")
	p.Ln(4)

	section("Reservation")
	p.CellFormat(0, 5, "Code: "+doc.ReservationCode, "", 1, "L", false, 0, "")
	p.CellFormat(0, 5, fmt.Sprintf("Check-in: %s   Check-out: %s",
		doc.CheckIn.Format("2006-01-02"), doc.CheckOut.Format("2006-01-02")), "", 1, "L", false, 0, "")
	p.Ln(4)

	section("Rooms")
	widths := []float64{25, 70, 20, 32, 33}
	p.SetFillColor(232, 245, 233)
	p.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"Room", "Type", "Nights", "Price/night", "Subtotal"} {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		p.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	p.Ln(-1)
	p.SetFont("Helvetica", "", 9)
	for _, l := range doc.Lines {
		p.CellFormat(widths[0], 6, tr(l.Room), "1", 0, "L", false, 0, "")
		p.CellFormat(widths[1], 6, tr(l.Description), "1", 0, "L", false, 0, "")
		p.CellFormat(widths[2], 6, fmt.Sprint(l.Nights), "1", 0, "R", false, 0, "")
		p.CellFormat(widths[3], 6, money(l.UnitPrice), "1", 0, "R", false, 0, "")
		p.CellFormat(widths[4], 6, money(l.Subtotal), "1", 1, "R", false, 0, "")
	}
	p.Ln(4)

	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		p.SetFont("Helvetica", style, 10)
		p.CellFormat(147, 6, label, "", 0, "R", false, 0, "")
		p.CellFormat(33, 6, value, "", 1, "R", false, 0, "")
	}
	total("Subtotal", money(doc.Subtotal), false)
	total("Tax ("+doc.TaxRate+")", money(doc.Tax), false)
	total("TOTAL", money(doc.Total), true)
	if doc.IssuedBy != "" {
		p.SetFont("Helvetica", "I", 8)
		p.CellFormat(0, 6, tr("Issued by "+doc.IssuedBy), "", 1, "R", false, 0, "")
	}

	if doc.VerifyText != "" {
		img, err := qrJPEG(doc.VerifyText)
		if err != nil {
			return nil, err
		}
		name := "qr-" + doc.Number
		p.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(img))
		p.ImageOptions(name, 15, p.GetY()+6, 30, 30, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	}

	p.SetY(-25)
	p.SetFont("Helvetica", "I", 9)
	p.SetTextColor(90, 90, 90)
	p.CellFormat(0, 5, tr("Thank you for staying with "+doc.Issuer.Name), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func qrJPEG(text string) ([]byte, error) {
	qrc, err := qrcode.New(text)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		return nil, fmt.Errorf("qr write: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string { return "$" + d.StringFixed(2) }
