package orders

import (
	"math"

	"orders-service/internal/domain"
)

// resolveTotals calcula quantidade, receita e custos do grupo. Linhas de pagamento e
// parcela não contam como itens.
func resolveTotals(g *domain.OrderGroup) {
	items := itemRows(g)
	g.QuantidadeTotal = totalQuantity(g, items)

	g.ItemsSum = 0
	for _, r := range items {
		g.ItemsSum += lineRevenue(r)
	}

	g.HeaderFinal = 0
	for _, r := range g.Rows {
		if IsDetail(r) {
			continue
		}
		if f, ok := r.Number(domain.FieldFinal); ok && f > g.HeaderFinal {
			g.HeaderFinal = f
		}
	}

	merged, _ := domain.AsNumber(g.Header[domain.FieldFinal])
	g.Final = resolveFinal(g.HeaderFinal, g.ItemsSum, merged)

	costRows := items
	if len(costRows) == 0 {
		costRows = g.Rows
	}
	g.CustoTotal = 0
	for _, r := range costRows {
		custo, ok1 := r.Number(domain.FieldCustoUnitario)
		qtd, ok2 := r.Number(domain.FieldQuantidade)
		if !ok2 && len(items) == 0 {
			qtd, ok2 = r.Number(domain.FieldQuantidadeItens)
		}
		if !ok1 || !ok2 || custo <= 0 || qtd <= 0 {
			continue
		}
		v := custo * qtd
		if math.IsInf(v, 0) {
			continue
		}
		g.CustoTotal += v
	}

	g.CustoFrete = 0
	g.ValorDescontos = 0
	for _, r := range g.Rows {
		if v, ok := r.Number(domain.FieldCustoFrete); ok {
			g.CustoFrete += v
		}
		if v, ok := r.Number(domain.FieldValorDescontos); ok {
			g.ValorDescontos += v
		}
	}
}

// resolveFinal aplica a ordem fixa: cabeçalho > soma dos itens > final mesclado > 0.
func resolveFinal(headerFinal, itemsSum, merged float64) float64 {
	switch {
	case headerFinal > 0:
		return headerFinal
	case itemsSum > 0:
		return itemsSum
	case merged != 0:
		return merged
	}
	return 0
}

func itemRows(g *domain.OrderGroup) []domain.CanonicalRow {
	var items []domain.CanonicalRow
	for _, r := range g.SubRows {
		if isItem(r) {
			items = append(items, r)
		}
	}
	return items
}

// totalQuantity soma a quantidade dos itens; sem nenhuma quantidade de item, usa a do pedido.
func totalQuantity(g *domain.OrderGroup, items []domain.CanonicalRow) float64 {
	total, found := 0.0, false
	for _, r := range items {
		if q, ok := r.Number(domain.FieldQuantidade); ok {
			total += q
			found = true
		}
	}
	if found {
		return total
	}
	if q, ok := domain.AsNumber(g.Header[domain.FieldQuantidadeItens]); ok {
		return q
	}
	if q, ok := domain.AsNumber(g.Header[domain.FieldQuantidade]); ok {
		return q
	}
	return 0
}

// lineRevenue: final da linha quando positivo, senão valor unitário × quantidade.
func lineRevenue(r domain.CanonicalRow) float64 {
	if f, ok := r.Number(domain.FieldFinal); ok && f > 0 {
		return f
	}
	unit, ok1 := r.Number(domain.FieldValorUnitario)
	qtd, ok2 := r.Number(domain.FieldQuantidade)
	if !ok1 || !ok2 {
		return 0
	}
	return unit * qtd
}
