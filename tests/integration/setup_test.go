package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/go-order-engine/internal/collab"
	"github.com/safar/go-order-engine/internal/inventory"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/orders"
	"github.com/safar/go-order-engine/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// memAddressBook, memCatalog and memCart are the injected fakes for the
// excluded collaborator services; the order engine under test runs
// against the real repository and ledger.

type memAddressBook struct {
	mu        sync.Mutex
	addresses map[string]collab.Address // key: "userID/addressID"
}

func (a *memAddressBook) put(userID, addressID int64, addr collab.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addresses[fmt.Sprintf("%d/%d", userID, addressID)] = addr
}

func (a *memAddressBook) Resolve(_ context.Context, userID, addressID int64) (collab.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr, ok := a.addresses[fmt.Sprintf("%d/%d", userID, addressID)]
	if !ok {
		return collab.Address{}, collab.ErrAddressNotFound
	}
	return addr, nil
}

type memCatalog struct {
	mu       sync.Mutex
	products map[int64]collab.PricedProduct
}

func (c *memCatalog) put(p collab.PricedProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ProductID] = p
}

func (c *memCatalog) BatchGetPricedProducts(_ context.Context, ids []int64) (map[int64]collab.PricedProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]collab.PricedProduct)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memCart struct {
	mu      sync.Mutex
	removed [][]int64
}

func (c *memCart) RemoveLines(_ context.Context, _ int64, productIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, productIDs)
	return nil
}

type countingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *countingNotifier) OnPaymentConfirmed(_ context.Context, orderNumber string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, orderNumber)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

type fixture struct {
	db        *sql.DB
	svc       *orders.Service
	addresses *memAddressBook
	catalog   *memCatalog
	cart      *memCart
	notifier  *countingNotifier
}

func setupFixture(t *testing.T) (*fixture, func()) {
	t.Helper()

	db, cleanup := setupTestDB(t)

	f := &fixture{
		db:        db,
		addresses: &memAddressBook{addresses: make(map[string]collab.Address)},
		catalog:   &memCatalog{products: make(map[int64]collab.PricedProduct)},
		cart:      &memCart{},
		notifier:  &countingNotifier{},
	}

	svc, err := orders.NewService(orders.Deps{
		Repo:      store.NewOrders(db),
		Addresses: f.addresses,
		Catalog:   f.catalog,
		Cart:      f.cart,
		Notifier:  f.notifier,
		Metrics:   metrics.NewOrderMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		cleanup()
		t.Fatalf("Build order service: %v", err)
	}
	f.svc = svc

	f.addresses.put(1, 10, collab.Address{
		ReceiverName: "Ada Lovelace",
		Phone:        "555-0100",
		FullAddress:  "1 Analytical Way",
	})

	return f, cleanup
}

// seedProduct registers a catalog snapshot and provisions its ledger row.
func (f *fixture) seedProduct(t *testing.T, productID, storeID int64, price string, stock int) {
	t.Helper()

	f.catalog.put(collab.PricedProduct{
		ProductID:    productID,
		StoreID:      storeID,
		Name:         fmt.Sprintf("Product %d", productID),
		ImageURL:     fmt.Sprintf("http://img/%d.png", productID),
		UnitPrice:    decimal.RequireFromString(price),
		AvailableQty: stock,
		ForSale:      true,
	})

	if err := inventory.Upsert(context.Background(), f.db, productID, stock); err != nil {
		t.Fatalf("Seed inventory for product %d: %v", productID, err)
	}
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()

	rec, err := inventory.Get(context.Background(), f.db, productID)
	if err != nil {
		t.Fatalf("Get inventory for product %d: %v", productID, err)
	}
	return rec.Quantity
}

func (f *fixture) countOrders(t *testing.T) int {
	t.Helper()

	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	return n
}

func (f *fixture) countLines(t *testing.T) int {
	t.Helper()

	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM order_lines`).Scan(&n); err != nil {
		t.Fatalf("Count order lines: %v", err)
	}
	return n
}
