package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type docsMock struct{ mock.Mock }

func (m *docsMock) RetryMissingDocuments(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type sessionsMock struct{ mock.Mock }

func (m *sessionsMock) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewRegistersEnabledJobs(t *testing.T) {
	s, err := New(Config{DocumentRetry: time.Minute, SessionPurge: time.Hour}, &docsMock{}, &sessionsMock{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	assert.Equal(t, 2, s.Jobs())

	s2, err := New(Config{DocumentRetry: time.Minute}, &docsMock{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Shutdown() })
	assert.Equal(t, 1, s2.Jobs())
}

func TestRetryDocumentsUsesBatchSize(t *testing.T) {
	docs := &docsMock{}
	docs.On("RetryMissingDocuments", mock.Anything, 5).Return(2, nil).Once()
	docs.On("RetryMissingDocuments", mock.Anything, 5).Return(0, errors.New("db down")).Once()

	s, err := New(Config{BatchSize: 5}, docs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	assert.NoError(t, s.RetryDocuments(context.Background()))
	assert.EqualError(t, s.RetryDocuments(context.Background()), "db down")
	docs.AssertExpectations(t)
}

func TestPurgeSessionsCutoff(t *testing.T) {
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	sessions := &sessionsMock{}
	sessions.On("PurgeSessions", mock.Anything, now.Add(-24*time.Hour)).Return(int64(3), nil)

	s, err := New(Config{}, nil, sessions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	s.now = func() time.Time { return now }

	assert.NoError(t, s.PurgeSessions(context.Background()))
	sessions.AssertExpectations(t)
}
