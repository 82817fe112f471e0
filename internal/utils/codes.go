package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ReservationCode returns RES-<unix ms>-<5 random alphanumerics>.
func ReservationCode(now time.Time) string {
	return fmt.Sprintf("RES-%d-%s", now.UnixMilli(), randomCode(5))
}

// InvoiceNumber returns INV-YYYYMMDD-NNNN where NNNN are the last four
// digits of the millisecond clock.  Uniqueness is best effort; callers
// retry on a duplicate key.
func InvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.UTC().Format("20060102"), now.UnixMilli()%10000)
}

// VoucherFileName builds <reservation id>_<unix nanos><ext>.  The extension
// comes from the uploaded name and falls back to the detected MIME type.
func VoucherFileName(reservationID uint64, original, mimeType string, now time.Time) string {
	return fmt.Sprintf("%d_%d%s", reservationID, now.UnixNano(), FileExt(original, mimeType))
}

// InvoiceFileName names the stored invoice document.
func InvoiceFileName(number string) string { return number + ".pdf" }

// FileExt returns a lower-case extension with its dot.
func FileExt(name, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func randomCode(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte(codeAlphabet[i%len(codeAlphabet)])
			continue
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String()
}
