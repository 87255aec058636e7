package orders

import (
	"math"
	"strings"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"

	"github.com/shopspring/decimal"
)

// lojaPatterns identificam o canal logístico de retirada/venda em loja.
var lojaPatterns = []string{"loja", "retira", "balcao"}

// packagingSlot é uma embalagem esperada para a modalidade, preenchida pela primeira
// regra cadastrada cujo nome contenha um dos padrões.
type packagingSlot struct {
	patterns []string
	strategy domain.QuantityStrategy
	perN     int
}

var slotsByModality = map[domain.Modality][]packagingSlot{
	domain.ModalityDelivery: {
		{patterns: []string{"plastic", "plastica", "plastico"}, strategy: domain.PerOrder},
		{patterns: []string{"tnt", "nao tecido"}, strategy: domain.PerUnit},
	},
	domain.ModalityLoja: {
		{patterns: []string{"loja"}, strategy: domain.PerNUnits, perN: 2},
	},
}

// modalityOf classifica o pedido pelo canal logístico.
func modalityOf(g *domain.OrderGroup) domain.Modality {
	canal := ""
	if s, ok := g.Header[domain.FieldCanalLogistico].(string); ok {
		canal = normalize.Header(s)
	}
	for _, p := range lojaPatterns {
		if strings.Contains(canal, p) {
			return domain.ModalityLoja
		}
	}
	return domain.ModalityDelivery
}

// allocatePackaging aplica as regras de embalagem ao grupo.
func allocatePackaging(g *domain.OrderGroup, rules []domain.PackagingRule) {
	g.CustoEmbalagem = 0
	g.Embalagens = nil
	if g.QuantidadeTotal <= 0 || len(rules) == 0 {
		return
	}

	modality := modalityOf(g)
	total := decimal.Zero
	for _, slot := range slotsByModality[modality] {
		rule, ok := matchRule(rules, modality, slot.patterns)
		if !ok {
			continue
		}
		qty := resolveQuantity(rule, slot, g.QuantidadeTotal)
		if qty <= 0 {
			continue
		}
		unit := decimal.NewFromFloat(rule.UnitCost)
		cost := unit.Mul(decimal.NewFromInt(int64(qty)))
		total = total.Add(cost)
		g.Embalagens = append(g.Embalagens, domain.AppliedPackaging{
			Nome:          rule.Name,
			Quantidade:    qty,
			CustoUnitario: rule.UnitCost,
			CustoTotal:    cost.InexactFloat64(),
		})
	}
	g.CustoEmbalagem = total.InexactFloat64()
}

func matchRule(rules []domain.PackagingRule, m domain.Modality, patterns []string) (domain.PackagingRule, bool) {
	for _, r := range rules {
		if !r.Covers(m) {
			continue
		}
		name := normalize.Header(r.Name)
		for _, p := range patterns {
			if strings.Contains(name, p) {
				return r, true
			}
		}
	}
	return domain.PackagingRule{}, false
}

// resolveQuantity usa a estratégia da regra quando cadastrada, senão a do slot.
func resolveQuantity(rule domain.PackagingRule, slot packagingSlot, units float64) int {
	strategy := slot.strategy
	perN := slot.perN
	if rule.QuantityStrategy != "" {
		strategy = rule.QuantityStrategy
	}
	if rule.UnitsPerPackage > 0 {
		perN = rule.UnitsPerPackage
	}
	switch strategy {
	case domain.PerOrder:
		return 1
	case domain.PerUnit:
		return int(math.Ceil(units))
	case domain.PerNUnits:
		if perN <= 0 {
			perN = 2
		}
		return int(math.Ceil(units / float64(perN)))
	}
	return 0
}
