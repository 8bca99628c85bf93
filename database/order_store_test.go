package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"storefront/models"
)

func sampleRequest(name string) models.OrderRequest {
	return models.OrderRequest{
		Customer: models.Customer{Name: name, Email: "buyer@example.com", Address: "Av. Siempre Viva 742"},
		Items: []models.CartLine{
			{ProductID: 1, Name: "Whey", Price: 29990, Quantity: 2},
		},
		Total: 59980,
	}
}

func newFileStore(t *testing.T) (*FileOrderStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "orders.json")
	store, err := NewFileOrderStore(path, NewIDGenerator(), zap.NewNop())
	require.NoError(t, err)
	return store, path
}

func TestNewFileOrderStore_InitialisesMissingFile(t *testing.T) {
	_, path := newFileStore(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileOrderStore_Create(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	record, err := store.Create(ctx, sampleRequest("Ana"))
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, "Ana", record.Customer.Name)
	assert.Equal(t, int64(59980), record.Total)

	_, err = time.Parse(time.RFC3339, record.Date)
	assert.NoError(t, err, "date must be ISO-8601")

	orders, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, record.ID, orders[0].ID)
	assert.Equal(t, record.Items, orders[0].Items)

	second, err := store.Create(ctx, sampleRequest("Beto"))
	require.NoError(t, err)
	assert.Greater(t, second.ID, record.ID)

	orders, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestFileOrderStore_SeedsIDsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	future := time.Now().Add(24 * time.Hour).UnixMilli()
	require.NoError(t, writeJSON(path, []models.OrderRecord{{ID: future, Date: "2026-01-01T00:00:00.000Z"}}))

	store, err := NewFileOrderStore(path, NewIDGenerator(), zap.NewNop())
	require.NoError(t, err)

	record, err := store.Create(context.Background(), sampleRequest("Ana"))
	require.NoError(t, err)
	assert.Equal(t, future+1, record.ID)
}

func TestFileOrderStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte("[{broken"), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	store, err := NewFileOrderStore(path, NewIDGenerator(), zap.New(core))
	require.NoError(t, err)

	_, err = store.Create(context.Background(), sampleRequest("Ana"))
	require.NoError(t, err)

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.NotZero(t, logs.FilterMessage("Order store unreadable, treating as empty").Len())
}

func TestFileOrderStore_WriteFailure(t *testing.T) {
	store, path := newFileStore(t)
	require.NoError(t, os.RemoveAll(filepath.Dir(path)))

	_, err := store.Create(context.Background(), sampleRequest("Ana"))
	assert.Error(t, err)
}

func TestFileOrderStore_CanceledContext(t *testing.T) {
	store, _ := newFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, sampleRequest("Ana"))
	assert.ErrorIs(t, err, context.Canceled)
}

// Two overlapping read-modify-write cycles on the bare file store: both read
// the empty collection before either writes, so one order is lost.
func TestFileOrderStore_ConcurrentCreateLosesUpdate(t *testing.T) {
	store, _ := newFileStore(t)

	var loaded sync.WaitGroup
	loaded.Add(2)
	store.afterLoad = func() {
		loaded.Done()
		loaded.Wait()
	}

	var wg sync.WaitGroup
	ids := make([]int64, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := store.Create(context.Background(), sampleRequest("racer"))
			assert.NoError(t, err)
			ids[i] = record.ID
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, ids[0], ids[1])

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1, "naive read-modify-write keeps only the last writer's order")
}

func TestSerialOrderStore_ConcurrentCreateKeepsAll(t *testing.T) {
	inner, _ := newFileStore(t)
	inner.afterLoad = func() { time.Sleep(time.Millisecond) }
	store := NewSerialOrderStore(inner, 8)
	defer store.Close()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(context.Background(), sampleRequest("shopper"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, n)

	seen := make(map[int64]bool, n)
	for i, order := range orders {
		assert.False(t, seen[order.ID])
		seen[order.ID] = true
		if i > 0 {
			assert.Greater(t, order.ID, orders[i-1].ID, "ids follow commit order")
		}
	}
}

func TestSerialOrderStore_Closed(t *testing.T) {
	inner, _ := newFileStore(t)
	store := NewSerialOrderStore(inner, 1)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Create(context.Background(), sampleRequest("late"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestSerialOrderStore_CanceledContext(t *testing.T) {
	inner, _ := newFileStore(t)
	store := NewSerialOrderStore(inner, 1)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, sampleRequest("Ana"))
	assert.ErrorIs(t, err, context.Canceled)

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}
