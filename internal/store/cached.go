package store

import (
	"context"
	"encoding/json"

	"orders-service/internal/domain"

	"go.uber.org/zap"
)

// Chaves do cache de configuração.
const (
	keyCalculations = "calculations"
	keyPackaging    = "packaging"
	keyFees         = "fees"
	keyColumns      = "columns"
)

// CacheObserver recebe acertos e falhas do cache.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

type noopObserver struct{}

func (noopObserver) CacheHit()  {}
func (noopObserver) CacheMiss() {}

// cachedRepository lê a configuração pelo cache e o invalida a cada escrita. Linhas e
// pedidos sempre vão direto ao repositório.
type cachedRepository struct {
	Repository
	cache    Cache
	observer CacheObserver
	logger   *zap.Logger
}

// NewCachedRepository envolve repo com o cache informado.
func NewCachedRepository(repo Repository, cache Cache, observer CacheObserver, logger *zap.Logger) Repository {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedRepository{Repository: repo, cache: cache, observer: observer, logger: logger}
}

// load tenta o cache e, na falta, consulta o repositório e grava o resultado. Falhas do
// cache nunca impedem a leitura.
func load[T any](ctx context.Context, c *cachedRepository, key string, fetch func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("falha ao ler cache", zap.String("chave", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.observer.CacheHit()
			return v, nil
		}
	}
	c.observer.CacheMiss()

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.logger.Warn("falha ao gravar cache", zap.String("chave", key), zap.Error(err))
		}
	}
	return v, nil
}

func (c *cachedRepository) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("falha ao invalidar cache", zap.Strings("chaves", keys), zap.Error(err))
	}
}

func (c *cachedRepository) Calculations(ctx context.Context) ([]domain.CustomCalculation, error) {
	return load(ctx, c, keyCalculations, c.Repository.Calculations)
}

func (c *cachedRepository) SaveCalculation(ctx context.Context, calc domain.CustomCalculation) error {
	defer c.invalidate(ctx, keyCalculations)
	return c.Repository.SaveCalculation(ctx, calc)
}

func (c *cachedRepository) DeleteCalculation(ctx context.Context, id string) error {
	defer c.invalidate(ctx, keyCalculations)
	return c.Repository.DeleteCalculation(ctx, id)
}

func (c *cachedRepository) PackagingRules(ctx context.Context) ([]domain.PackagingRule, error) {
	return load(ctx, c, keyPackaging, c.Repository.PackagingRules)
}

func (c *cachedRepository) SavePackagingRules(ctx context.Context, rules []domain.PackagingRule) error {
	defer c.invalidate(ctx, keyPackaging)
	return c.Repository.SavePackagingRules(ctx, rules)
}

func (c *cachedRepository) FeeSchedules(ctx context.Context) ([]domain.FeeSchedule, error) {
	return load(ctx, c, keyFees, c.Repository.FeeSchedules)
}

func (c *cachedRepository) SaveFeeSchedules(ctx context.Context, fees []domain.FeeSchedule) error {
	defer c.invalidate(ctx, keyFees)
	return c.Repository.SaveFeeSchedules(ctx, fees)
}

func (c *cachedRepository) Columns(ctx context.Context) ([]domain.ColumnMeta, error) {
	return load(ctx, c, keyColumns, c.Repository.Columns)
}

func (c *cachedRepository) SaveColumns(ctx context.Context, cols []domain.ColumnMeta) error {
	defer c.invalidate(ctx, keyColumns)
	return c.Repository.SaveColumns(ctx, cols)
}
