package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orders-service/internal/domain"
)

// memoryRepository guarda tudo em memória; usado em desenvolvimento local e em testes.
type memoryRepository struct {
	mu        sync.RWMutex
	rows      map[domain.SourceKind]map[string]domain.CanonicalRow
	orders    map[string]map[string]any
	calcs     map[string]domain.CustomCalculation
	calcOrder []string
	packaging []domain.PackagingRule
	fees      []domain.FeeSchedule
	columns   []domain.ColumnMeta
}

// NewMemoryRepository cria um repositório vazio em memória.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		rows:   make(map[domain.SourceKind]map[string]domain.CanonicalRow),
		orders: make(map[string]map[string]any),
		calcs:  make(map[string]domain.CustomCalculation),
	}
}

func (m *memoryRepository) Rows(_ context.Context) ([]domain.CanonicalRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CanonicalRow
	for _, kind := range rowCollections {
		for _, r := range m.rows[kind] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *memoryRepository) SaveRows(_ context.Context, kind domain.SourceKind, rows []domain.CanonicalRow) error {
	if !kind.Valid() {
		return fmt.Errorf("tipo de planilha inválido: %q", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.rows[kind]
	if !ok {
		bucket = make(map[string]domain.CanonicalRow)
		m.rows[kind] = bucket
	}
	for _, r := range rows {
		r.Key = rowKey(r)
		bucket[r.Key] = r
	}
	return nil
}

func (m *memoryRepository) Orders(_ context.Context) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	codes := make([]string, 0, len(m.orders))
	for code := range m.orders {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]map[string]any, 0, len(codes))
	for _, code := range codes {
		out = append(out, m.orders[code])
	}
	return out, nil
}

func (m *memoryRepository) SaveOrders(_ context.Context, records []map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if code, _ := rec[domain.FieldCodigo].(string); code != "" {
			m.orders[code] = rec
		}
	}
	return nil
}

func (m *memoryRepository) Calculations(_ context.Context) ([]domain.CustomCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CustomCalculation, 0, len(m.calcOrder))
	for _, id := range m.calcOrder {
		out = append(out, m.calcs[id])
	}
	return out, nil
}

func (m *memoryRepository) SaveCalculation(_ context.Context, calc domain.CustomCalculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.calcs[calc.ID]; !exists {
		m.calcOrder = append(m.calcOrder, calc.ID)
	}
	m.calcs[calc.ID] = calc
	return nil
}

func (m *memoryRepository) DeleteCalculation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.calcs[id]; !exists {
		return ErrNotFound
	}
	delete(m.calcs, id)
	for i, cid := range m.calcOrder {
		if cid == id {
			m.calcOrder = append(m.calcOrder[:i], m.calcOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryRepository) PackagingRules(_ context.Context) ([]domain.PackagingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.PackagingRule(nil), m.packaging...), nil
}

func (m *memoryRepository) SavePackagingRules(_ context.Context, rules []domain.PackagingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packaging = append(m.packaging, rules...)
	return nil
}

func (m *memoryRepository) FeeSchedules(_ context.Context) ([]domain.FeeSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.FeeSchedule(nil), m.fees...), nil
}

func (m *memoryRepository) SaveFeeSchedules(_ context.Context, fees []domain.FeeSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees = append(m.fees, fees...)
	return nil
}

func (m *memoryRepository) Columns(_ context.Context) ([]domain.ColumnMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ColumnMeta(nil), m.columns...), nil
}

func (m *memoryRepository) SaveColumns(_ context.Context, cols []domain.ColumnMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.columns = append([]domain.ColumnMeta(nil), cols...)
	return nil
}
