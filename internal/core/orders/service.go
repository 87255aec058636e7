// package orders/service.go
package orders

import (
	"go.uber.org/zap"

	"orders-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Snapshot é tudo o que o motor precisa para recalcular os pedidos do zero.
type Snapshot struct {
	Rows         []domain.CanonicalRow
	Packaging    []domain.PackagingRule
	Fees         []domain.FeeSchedule
	Calculations []domain.CustomCalculation
	Columns      []domain.ColumnMeta
}

// Summary consolida os totais do snapshot.
type Summary struct {
	Orders         int     `json:"pedidos"`
	Unassignable   int     `json:"linhasSemCodigo"`
	Revenue        float64 `json:"receita"`
	Cost           float64 `json:"custo"`
	PackagingCost  float64 `json:"custoEmbalagem"`
	CardFees       float64 `json:"taxasCartao"`
	FormulaFailure int     `json:"falhasFormula"`
}

// Result é construído por completo antes de ser devolvido.
type Result struct {
	Groups        []*domain.OrderGroup
	Unassignable  int
	FormulaErrors []FormulaError
	Columns       []domain.ColumnMeta
	Summary       Summary
}

// Records devolve os pedidos achatados, na ordem dos grupos.
func (r Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Groups))
	for _, g := range r.Groups {
		out = append(out, g.Flatten())
	}
	return out
}

// Service defines the order consolidation engine.
type Service interface {
	Compute(snap Snapshot) Result
}

type service struct {
	logger *zap.Logger
}

// NewService creates a new orders engine.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{logger: logger}
}

// Compute agrupa, resolve e enriquece todos os pedidos do snapshot.
func (s *service) Compute(snap Snapshot) Result {
	groups, unassignable := groupRows(snap.Rows)
	if unassignable > 0 {
		s.logger.Debug("linhas sem código de pedido ignoradas", zap.Int("linhas", unassignable))
	}

	fees := newFeeIndex(snap.Fees)
	for _, g := range groups {
		resolveTotals(g)
		allocatePackaging(g, snap.Packaging)
		calculateFees(g, fees)
	}

	compiled := compileCalculations(snap.Calculations)
	var formulaErrors []FormulaError
	for _, cc := range compiled {
		if cc.err != nil {
			fe := newFormulaError("", cc.calc.ID, cc.err)
			formulaErrors = append(formulaErrors, fe)
			s.logger.Warn("fórmula inválida", zap.String("calculo", cc.calc.ID), zap.Error(cc.err))
		}
	}

	cat := newCatalog(groups, snap.Columns, snap.Calculations)
	for _, g := range groups {
		for _, fe := range applyCalculations(g, compiled, cat) {
			formulaErrors = append(formulaErrors, fe)
			s.logger.Warn("falha ao avaliar fórmula",
				zap.String("calculo", fe.CalculationID),
				zap.String("pedido", fe.Code),
				zap.Error(fe.Err),
			)
		}
	}

	return Result{
		Groups:        groups,
		Unassignable:  unassignable,
		FormulaErrors: formulaErrors,
		Columns:       SyncColumns(snap.Columns, snap.Calculations),
		Summary:       summarize(groups, unassignable, len(formulaErrors)),
	}
}

func summarize(groups []*domain.OrderGroup, unassignable, failures int) Summary {
	revenue, cost, packaging, fees := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, g := range groups {
		revenue = revenue.Add(decimal.NewFromFloat(g.Final))
		cost = cost.Add(decimal.NewFromFloat(g.CustoTotal))
		packaging = packaging.Add(decimal.NewFromFloat(g.CustoEmbalagem))
		fees = fees.Add(decimal.NewFromFloat(g.TaxaTotalCartao))
	}
	return Summary{
		Orders:         len(groups),
		Unassignable:   unassignable,
		Revenue:        revenue.Round(2).InexactFloat64(),
		Cost:           cost.Round(2).InexactFloat64(),
		PackagingCost:  packaging.Round(2).InexactFloat64(),
		CardFees:       fees.Round(2).InexactFloat64(),
		FormulaFailure: failures,
	}
}
