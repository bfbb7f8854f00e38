package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/mailer"
	"github.com/Skotchmaster/storefront/internal/media"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/db"
)

type imageHostMock struct{ mock.Mock }

func (m *imageHostMock) Upload(ctx context.Context, file, folder string, opts media.UploadOptions) (models.Image, error) {
	args := m.Called(ctx, file, folder, opts)
	return args.Get(0).(models.Image), args.Error(1)
}

func (m *imageHostMock) Delete(ctx context.Context, publicID string) error {
	return m.Called(ctx, publicID).Error(0)
}

type mailerMock struct{ mock.Mock }

func (m *mailerMock) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, topic, key string, e events.Event) error {
	return m.Called(ctx, topic, key, e).Error(0)
}

func (m *publisherMock) Close() error { return m.Called().Error(0) }

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, models.All()...))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return repo.New(gdb)
}
