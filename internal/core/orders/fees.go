package orders

import (
	"strings"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"

	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"
)

// feeIndex resolve operadoras pelo nome normalizado.
type feeIndex struct {
	byName map[string]domain.FeeSchedule
	cm     *closestmatch.ClosestMatch
}

func newFeeIndex(schedules []domain.FeeSchedule) *feeIndex {
	idx := &feeIndex{byName: make(map[string]domain.FeeSchedule, len(schedules))}
	var keys []string
	for _, s := range schedules {
		key := normalize.Header(s.Operator)
		if key == "" {
			continue
		}
		if _, dup := idx.byName[key]; dup {
			continue
		}
		idx.byName[key] = s
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		idx.cm = closestmatch.New(keys, []int{2, 3})
	}
	return idx
}

// lookup tenta o nome exato e, se falhar, o candidato mais próximo desde que um nome
// contenha o outro ("CIELO CREDITO" -> "CIELO"). Sem correspondência: false.
func (idx *feeIndex) lookup(operator string) (domain.FeeSchedule, bool) {
	key := normalize.Header(operator)
	if key == "" {
		return domain.FeeSchedule{}, false
	}
	if s, ok := idx.byName[key]; ok {
		return s, true
	}
	if idx.cm == nil {
		return domain.FeeSchedule{}, false
	}
	match := idx.cm.Closest(key)
	if match == "" {
		return domain.FeeSchedule{}, false
	}
	if strings.Contains(key, match) || strings.Contains(match, key) {
		return idx.byName[match], true
	}
	return domain.FeeSchedule{}, false
}

// feePercent devolve a taxa (%) aplicável ao registro de custo.
func feePercent(s domain.FeeSchedule, c domain.CostRecord) float64 {
	switch c.Modalidade {
	case domain.PaymentDebit:
		return s.DebitFee
	case domain.PaymentCredit:
		installments := c.Parcelas
		if installments < 1 {
			installments = 1
		}
		return s.CreditFees[installments]
	}
	return 0
}

// calculateFees preenche a taxa de cada registro de custo e o total do pedido, sem
// arredondar por linha.
func calculateFees(g *domain.OrderGroup, idx *feeIndex) {
	total := decimal.Zero
	for i := range g.Costs {
		c := &g.Costs[i]
		c.Taxa = 0
		s, ok := idx.lookup(c.Operadora)
		if !ok {
			continue
		}
		pct := feePercent(s, *c)
		if pct == 0 {
			continue
		}
		fee := decimal.NewFromFloat(c.Valor).
			Mul(decimal.NewFromFloat(pct)).
			Div(decimal.NewFromInt(100))
		c.Taxa = fee.InexactFloat64()
		total = total.Add(fee)
	}
	g.TaxaTotalCartao = total.InexactFloat64()
}
