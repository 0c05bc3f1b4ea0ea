package sqlstore

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pliu/hush/internal/models"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
}

func TeardownTestDB() {
	testStore.db.Close()
}

func newRoom(id string, kind models.Kind, ttl time.Duration) *models.Room {
	r := &models.Room{ID: id, Kind: kind, CreatedAt: time.Now()}
	if ttl != 0 {
		exp := time.Now().Add(ttl)
		r.ExpiresAt = &exp
	}
	return r
}
