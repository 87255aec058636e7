package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orders-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }

// countingRepository conta leituras de configuração que chegam ao repositório.
type countingRepository struct {
	Repository
	calcReads int
	feeReads  int
}

func (r *countingRepository) Calculations(ctx context.Context) ([]domain.CustomCalculation, error) {
	r.calcReads++
	return r.Repository.Calculations(ctx)
}

func (r *countingRepository) FeeSchedules(ctx context.Context) ([]domain.FeeSchedule, error) {
	r.feeReads++
	return r.Repository.FeeSchedules(ctx)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(time.Minute, clock)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	clock.Advance(59 * time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entries expire exactly at the TTL")

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Delete(ctx, "a", "missing"))
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestCachedRepositoryServesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	base := &countingRepository{Repository: NewMemoryRepository()}
	obs := &countingObserver{}
	clock := &fakeClock{now: time.Now()}
	repo := NewCachedRepository(base, NewMemoryCache(time.Minute, clock), obs, nil)

	require.NoError(t, repo.SaveCalculation(ctx, domain.CustomCalculation{ID: "c1", Name: "Um"}))

	for i := 0; i < 3; i++ {
		calcs, err := repo.Calculations(ctx)
		require.NoError(t, err)
		require.Len(t, calcs, 1)
	}
	assert.Equal(t, 1, base.calcReads)
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 1, obs.misses)

	require.NoError(t, repo.SaveCalculation(ctx, domain.CustomCalculation{ID: "c2", Name: "Dois"}))
	calcs, err := repo.Calculations(ctx)
	require.NoError(t, err)
	assert.Len(t, calcs, 2, "writes invalidate the cached list")
	assert.Equal(t, 2, base.calcReads)

	clock.Advance(2 * time.Minute)
	_, err = repo.Calculations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, base.calcReads, "expired entries are reloaded")
}

func TestCachedRepositoryKeepsFeeKeys(t *testing.T) {
	ctx := context.Background()
	base := &countingRepository{Repository: NewMemoryRepository()}
	repo := NewCachedRepository(base, NewMemoryCache(time.Hour, nil), nil, nil)

	require.NoError(t, repo.SaveFeeSchedules(ctx, []domain.FeeSchedule{
		{Operator: "Cielo", DebitFee: 1.5, CreditFees: map[int]float64{1: 2.5, 3: 4}},
	}))
	_, err := repo.FeeSchedules(ctx)
	require.NoError(t, err)
	fees, err := repo.FeeSchedules(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, base.feeReads)
	require.Len(t, fees, 1)
	assert.Equal(t, 4.0, fees[0].CreditFees[3])
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.SaveRows(ctx, domain.SourceCustos, []domain.CanonicalRow{{Seq: 3, Fields: map[string]any{"codigo": "1"}}}))
	require.NoError(t, repo.SaveRows(ctx, domain.SourcePedidos, []domain.CanonicalRow{
		{Seq: 1, Fields: map[string]any{"codigo": "1"}},
		{Seq: 2, Fields: map[string]any{"codigo": "2"}},
	}))
	assert.Error(t, repo.SaveRows(ctx, domain.SourceKind("vendas"), nil))

	rows, err := repo.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].Seq, rows[1].Seq, rows[2].Seq})

	assert.True(t, errors.Is(repo.DeleteCalculation(ctx, "nada"), ErrNotFound))

	require.NoError(t, repo.SaveOrders(ctx, []map[string]any{{"codigo": "B"}, {"codigo": "A"}, {"final": 1.0}}))
	orders, err := repo.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "A", orders[0]["codigo"])
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
packaging:
  - name: Sacola Plástica
    modalities: [Delivery]
    unitCost: 0.5
fees:
  - operator: Cielo
    debitFee: 1.5
    creditFees:
      1: 2.5
      2: 3
`))
	require.NoError(t, err)
	require.Len(t, seed.Packaging, 1)
	assert.Equal(t, []domain.Modality{domain.ModalityDelivery}, seed.Packaging[0].Modalities)
	assert.Equal(t, 3.0, seed.Fees[0].CreditFees[2])

	_, err = ParseSeed([]byte("packaging:\n  - name: X\n    modalities: [Drone]\n"))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("fees:\n  - operator: Rede\n    creditFees:\n      0: 1\n"))
	assert.Error(t, err)
}

func TestSeedFileInRepositoryIsValid(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("..", "..", "config", "seed.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, seed.Packaging)
	assert.NotEmpty(t, seed.Fees)
}

func TestApplySeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed := &Seed{
		Packaging: []domain.PackagingRule{{Name: "Sacola Plástica", UnitCost: 0.5}},
		Fees:      []domain.FeeSchedule{{Operator: "Cielo", DebitFee: 1}},
	}

	require.NoError(t, ApplySeed(ctx, repo, seed, nil))
	require.NoError(t, ApplySeed(ctx, repo, seed, nil))

	rules, _ := repo.PackagingRules(ctx)
	require.Len(t, rules, 1)
	assert.Equal(t, "sacola-plastica", rules[0].ID)
	fees, _ := repo.FeeSchedules(ctx)
	assert.Len(t, fees, 1)
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nao-existe.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFeeDocumentRoundTrip(t *testing.T) {
	s := domain.FeeSchedule{Operator: "Stone", DebitFee: 1.1, CreditFees: map[int]float64{1: 2.2, 10: 5}}
	d := newFeeDocument(s)
	assert.Equal(t, 5.0, d.CreditFees["10"])

	d.CreditFees["x"] = 9
	assert.Equal(t, s, d.schedule(), "non-numeric keys are ignored")
}

func TestFromFirestoreValue(t *testing.T) {
	in := map[string]any{
		"quantidade": int64(3),
		"final":      10.5,
		"nested":     map[string]any{"n": int64(2)},
		"list":       []any{int64(1), "a"},
	}
	out := fromFirestoreMap(in)

	assert.Equal(t, 3.0, out["quantidade"])
	assert.Equal(t, 10.5, out["final"])
	assert.Equal(t, map[string]any{"n": 2.0}, out["nested"])
	assert.Equal(t, []any{1.0, "a"}, out["list"])
	assert.Equal(t, "0000000042", rowDocID(42))
}
