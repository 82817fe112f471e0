package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() InvoiceDocument {
	in := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return InvoiceDocument{
		Issuer:          Issuer{Name: "Hotel Paraíso", TaxID: "0999", Address: "Av. Principal 1", Email: "info@hotel.test"},
		Number:          "INV-20250301-0042",
		IssuedAt:        in,
		IssuedBy:        "Front Desk",
		ReservationCode: "RES-1-ABCDE",
		ClientName:      "Ana Pérez",
		ClientEmail:     "ana@example.com",
		CheckIn:         in,
		CheckOut:        in.AddDate(0, 0, 2),
		Lines: []Line{{Room: "101", Description: "Double", Nights: 2,
			UnitPrice: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)}},
		Subtotal: decimal.NewFromInt(200),
		Tax:      decimal.RequireFromString("38.00"),
		TaxRate:  "19%",
		Total:    decimal.RequireFromString("238.00"),
	}
}

func TestRenderInvoice(t *testing.T) {
	out, err := FPDF{}.RenderInvoice(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderInvoiceWithQR(t *testing.T) {
	doc := sampleDocument()
	doc.VerifyText = "INV-20250301-0042|238.00"
	out, err := FPDF{}.RenderInvoice(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	plain, _ := FPDF{}.RenderInvoice(sampleDocument())
	assert.Greater(t, len(out), len(plain))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$238.00", money(decimal.RequireFromString("238")))
}
