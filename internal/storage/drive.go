package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMime = "application/vnd.google-apps.folder"

// DriveConfig holds the OAuth client and the long lived refresh token of
// the account owning the files.
type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	RootFolder   string
}

// DriveStore stores files in Google Drive under RootFolder/<folder>.
// Uploaded files are shared read-only with anyone holding the link.
type DriveStore struct {
	svc  *drive.Service
	root string

	mu      sync.Mutex
	folders map[string]string // folder name -> id
}

// NewDriveStore builds a Drive client authenticated with the refresh token.
func NewDriveStore(ctx context.Context, cfg DriveConfig) (*DriveStore, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	svc, err := drive.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return NewDriveStoreWithService(svc, cfg.RootFolder), nil
}

// NewDriveStoreWithService wraps an existing service.
func NewDriveStoreWithService(svc *drive.Service, root string) *DriveStore {
	if root == "" {
		root = "Hotel"
	}
	return &DriveStore{svc: svc, root: root, folders: map[string]string{}}
}

func (s *DriveStore) Folder(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rootID, err := s.folderLocked(ctx, s.root, "")
	if err != nil {
		return "", err
	}
	if name == "" || name == s.root {
		return rootID, nil
	}
	return s.folderLocked(ctx, name, rootID)
}

func (s *DriveStore) folderLocked(ctx context.Context, name, parent string) (string, error) {
	key := parent + "/" + name
	if id, ok := s.folders[key]; ok {
		return id, nil
	}
	list, err := s.svc.Files.List().Context(ctx).
		Q(folderQuery(name, parent)).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return "", fmt.Errorf("drive list %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		s.folders[key] = list.Files[0].Id
		return list.Files[0].Id, nil
	}
	f := &drive.File{Name: name, MimeType: folderMime}
	if parent != "" {
		f.Parents = []string{parent}
	}
	created, err := s.svc.Files.Create(f).Context(ctx).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("drive create folder %q: %w", name, err)
	}
	s.folders[key] = created.Id
	return created.Id, nil
}

func (s *DriveStore) Upload(ctx context.Context, obj Object) (File, error) {
	if len(obj.Data) == 0 {
		return File{}, ErrEmptyObject
	}
	folderID, err := s.Folder(ctx, obj.Folder)
	if err != nil {
		return File{}, err
	}
	f, err := s.svc.Files.Create(&drive.File{Name: obj.Name, Parents: []string{folderID}, MimeType: obj.MimeType}).
		Context(ctx).
		Media(bytes.NewReader(obj.Data)).
		Fields("id, webViewLink, webContentLink").
		Do()
	if err != nil {
		return File{}, fmt.Errorf("drive upload %q: %w", obj.Name, err)
	}
	// A private file is still usable by staff, so a failed share is logged only.
	if _, err := s.svc.Permissions.Create(f.Id, &drive.Permission{Type: "anyone", Role: "reader"}).Context(ctx).Do(); err != nil {
		log.Printf("storage: drive share %s failed: %v", f.Id, err)
	}
	return driveFile(f), nil
}

func (s *DriveStore) Delete(ctx context.Context, id string) error {
	return s.svc.Files.Delete(id).Context(ctx).Do()
}

func folderQuery(name, parent string) string {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMime)
	if parent != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parent))
	}
	return q
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// driveFile fills links Drive left empty with the canonical URLs.
func driveFile(f *drive.File) File {
	out := File{ID: f.Id, ViewLink: f.WebViewLink, DownloadLink: f.WebContentLink}
	if out.ViewLink == "" {
		out.ViewLink = "https://drive.google.com/file/d/" + f.Id + "/view"
	}
	if out.DownloadLink == "" {
		out.DownloadLink = "https://drive.google.com/uc?export=download&id=" + f.Id
	}
	return out
}
