package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
)

type s3Mock struct{ mock.Mock }

func (m *s3Mock) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *s3Mock) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

type presignStub struct{ calls []*s3.GetObjectInput }

func (p *presignStub) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.calls = append(p.calls, in)
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(in.Key)}, nil
}

func TestS3StoreUpload(t *testing.T) {
	m := new(s3Mock)
	p := &presignStub{}
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		key := aws.ToString(in.Key)
		return aws.ToString(in.Bucket) == "docs" &&
			strings.HasPrefix(key, "payment-vouchers/") &&
			strings.HasSuffix(key, "/7_1700000000.png") &&
			aws.ToString(in.ContentType) == "image/png"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	st := NewS3StoreWith(m, p, "docs", 0)
	f, err := st.Upload(context.Background(), Object{Name: "7_1700000000.png", Data: []byte("x"), MimeType: "image/png", Folder: FolderVouchers})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.ID, "payment-vouchers/"))
	assert.Equal(t, "https://bucket.example/"+f.ID, f.ViewLink)
	require.Len(t, p.calls, 2)
	assert.Contains(t, aws.ToString(p.calls[1].ResponseContentDisposition), "attachment")
	m.AssertExpectations(t)
}

func TestS3StoreUploadErrors(t *testing.T) {
	m := new(s3Mock)
	st := NewS3StoreWith(m, &presignStub{}, "docs", 0)

	_, err := st.Upload(context.Background(), Object{Name: "a.pdf"})
	assert.ErrorIs(t, err, ErrEmptyObject)

	m.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied")).Once()
	_, err = st.Upload(context.Background(), Object{Name: "a.pdf", Data: []byte("%PDF"), Folder: FolderInvoices})
	assert.ErrorContains(t, err, "denied")
}

func TestS3StoreDelete(t *testing.T) {
	m := new(s3Mock)
	m.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "invoices/k/INV.pdf"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	require.NoError(t, NewS3StoreWith(m, &presignStub{}, "docs", 0).Delete(context.Background(), "invoices/k/INV.pdf"))
	m.AssertExpectations(t)
}

func TestS3FolderIsSlug(t *testing.T) {
	st := NewS3StoreWith(new(s3Mock), &presignStub{}, "docs", 0)
	name, err := st.Folder(context.Background(), "Payment Vouchers")
	require.NoError(t, err)
	assert.Equal(t, "payment-vouchers", name)
}

func TestFolderQuery(t *testing.T) {
	assert.Equal(t,
		"name='Invoices' and mimeType='application/vnd.google-apps.folder' and trashed=false and 'root1' in parents",
		folderQuery("Invoices", "root1"))
	assert.Equal(t,
		`name='Guest\'s' and mimeType='application/vnd.google-apps.folder' and trashed=false`,
		folderQuery("Guest's", ""))
}

func TestDriveFileFallbackLinks(t *testing.T) {
	f := driveFile(&drive.File{Id: "abc"})
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", f.ViewLink)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=abc", f.DownloadLink)

	f = driveFile(&drive.File{Id: "abc", WebViewLink: "v", WebContentLink: "d"})
	assert.Equal(t, File{ID: "abc", ViewLink: "v", DownloadLink: "d"}, f)
}
