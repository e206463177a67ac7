package users_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testPassword = "sup3r-secret-password"

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes testPassword exactly once per run since the hash
// cost makes per-test hashing too slow.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := users.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testHash = h
	})
	return testHash
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per connection, so the pool stays at one.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	models := []any{
		(*users.Account)(nil),
		(*users.RefreshSession)(nil),
		(*users.LifecycleToken)(nil),
		(*users.Role)(nil),
		(*users.Settings)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	return db
}

func newTestRepo(t *testing.T) users.RepositoryManager {
	t.Helper()
	return users.NewRepositoryManager(setupTestDB(t))
}

func seedAccount(t *testing.T, repo users.RepositoryManager, login string, active bool, role string) *users.Account {
	t.Helper()
	account, err := repo.Accounts().Register(context.Background(), &users.Account{
		Login:        login,
		Email:        login + "@example.com",
		Role:         role,
		PasswordHash: testPasswordHash(t),
		Active:       active,
	})
	require.NoError(t, err)
	return account
}

func seedSettings(t *testing.T, repo users.RepositoryManager, cfg *users.Settings) {
	t.Helper()
	_, err := repo.Settings().Upsert(context.Background(), cfg)
	require.NoError(t, err)
}

func newTestTokenService(t *testing.T) users.TokenService {
	t.Helper()
	ts, err := users.NewTokenService(&users.SimpleConfig{
		Tenant:        "acme",
		SigningKey:    []byte("test-signing-secret"),
		SigningMethod: "HS256",
		Issuer:        "go-users-test",
		Audience:      []string{"test"},
	}, nil)
	require.NoError(t, err)
	return ts
}

type capturingSink struct {
	mu     sync.Mutex
	events []users.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, event users.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) byType(kind users.ActivityEventType) []users.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []users.ActivityEvent
	for _, event := range c.events {
		if event.EventType == kind {
			out = append(out, event)
		}
	}
	return out
}

type capturingNotifier struct {
	mu            sync.Mutex
	notifications []users.TokenNotification
}

func (c *capturingNotifier) Notify(ctx context.Context, notification users.TokenNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, notification)
	return nil
}

func (c *capturingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notifications)
}

func (c *capturingNotifier) first() users.TokenNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifications[0]
}

// waitForNotifications polls until the notifier has seen n deliveries.
// Delivery happens on a goroutine after the transaction commits.
func waitForNotifications(t *testing.T, c *capturingNotifier, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d notifications, got %d", n, c.count())
}
