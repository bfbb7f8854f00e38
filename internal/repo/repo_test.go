package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/db"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, models.All()...))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return New(gdb)
}

func seedProduct(t *testing.T, r *GormRepo, p models.Product) models.Product {
	t.Helper()
	if p.Name == "" {
		p.Name = "Product"
	}
	if p.Description == "" {
		p.Description = "description"
	}
	if p.Category == "" {
		p.Category = "Electronics"
	}
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	require.NoError(t, r.CreateProduct(context.Background(), &p))
	return p
}
