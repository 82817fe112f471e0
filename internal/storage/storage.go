// Package storage keeps uploaded vouchers and generated invoice documents
// outside the database.  Two backends exist: Google Drive (shared links)
// and Amazon S3 (presigned links).
package storage

import (
	"context"
	"errors"
)

// Folder names used by the services.
const (
	FolderVouchers = "Payment Vouchers"
	FolderInvoices = "Invoices"
)

// ErrEmptyObject is returned when Upload receives no data.
var ErrEmptyObject = errors.New("storage: empty object")

// Object is a file to store.  Folder is a logical folder name resolved by
// the backend.
type Object struct {
	Name     string
	Data     []byte
	MimeType string
	Folder   string
}

// File describes a stored object.
type File struct {
	ID           string `json:"id"`
	ViewLink     string `json:"view_link"`
	DownloadLink string `json:"download_link"`
}

// Store is implemented by every backend.
type Store interface {
	Upload(ctx context.Context, obj Object) (File, error)
	// Folder returns the backend id of the named folder, creating it when
	// missing.
	Folder(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, id string) error
}
