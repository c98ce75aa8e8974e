package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/bodegalabs/bodega-server/cache"
	"github.com/bodegalabs/bodega-server/config"
	dbadapter "github.com/bodegalabs/bodega-server/db"
	"github.com/bodegalabs/bodega-server/middleware"
	"github.com/bodegalabs/bodega-server/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{Mode: dbadapter.ModeMemory})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// SeedUser inserts a user row and returns it. Movements and audit entries
// reference users by id.
func SeedUser(t *testing.T, db *gorm.DB, name, email string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.New().String(), Name: name, Email: email}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedProduct inserts a category and a product and returns the product.
func SeedProduct(t *testing.T, db *gorm.DB, sku, name string) *model.Product {
	t.Helper()
	cat := &model.Category{ID: uuid.New().String(), Name: "General"}
	require.NoError(t, db.Create(cat).Error)
	p := &model.Product{ID: uuid.New().String(), SKU: sku, Name: name, CategoryID: cat.ID}
	require.NoError(t, db.Create(p).Error)
	return p
}

// IssueToken signs a JWT for userID and registers its session in the cache,
// mirroring what the identity service does in production.
func IssueToken(t *testing.T, c cache.Cache, sec config.SecurityConfig, userID string) string {
	t.Helper()
	token, err := middleware.GenerateToken(userID, sec.JWTSecret, sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "session:"+token, userID, time.Hour))
	return token
}
