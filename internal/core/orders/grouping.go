package orders

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"
)

// headerFields é a lista fixa de campos de cabeçalho mesclados por "primeiro não vazio vence".
var headerFields = []string{
	domain.FieldData,
	domain.FieldCodigo,
	domain.FieldTipo,
	domain.FieldNomeCliente,
	domain.FieldVendedor,
	domain.FieldCidade,
	domain.FieldCanal,
	domain.FieldFidelidade,
	domain.FieldCanalLogistico,
	domain.FieldFinal,
	domain.FieldFrete,
	domain.FieldIDMovimentoEstoque,
}

// groupRows agrupa as linhas pelo código normalizado. A ordem de ingestão é a de Seq,
// nunca a ordem do slice recebido. Linhas sem código são contadas e descartadas.
func groupRows(rows []domain.CanonicalRow) ([]*domain.OrderGroup, int) {
	ordered := make([]domain.CanonicalRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Seq < ordered[j].Seq
	})

	index := make(map[string]*domain.OrderGroup)
	var groups []*domain.OrderGroup
	unassignable := 0

	for _, row := range ordered {
		code := normalize.Code(row.Fields[domain.FieldCodigo])
		if code == "" {
			unassignable++
			continue
		}
		g, ok := index[code]
		if !ok {
			g = &domain.OrderGroup{Code: code}
			index[code] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, row)
	}

	for _, g := range groups {
		mergeGroup(g)
	}
	return groups, unassignable
}

// mergeGroup monta cabeçalho, subRows, parcelas e custos de um grupo.
//
// Precedência do cabeçalho: todas as linhas de cabeçalho, em ordem de Seq, vêm antes de
// qualquer linha de detalhe, mesmo que o detalhe tenha chegado antes. Linhas de detalhe
// só preenchem campos que nenhum cabeçalho trouxe.
func mergeGroup(g *domain.OrderGroup) {
	header := make(map[string]any)

	for _, detailPass := range []bool{false, true} {
		for _, r := range g.Rows {
			if IsDetail(r) != detailPass {
				continue
			}
			for _, f := range headerFields {
				if domain.IsEmpty(header[f]) && r.Has(f) {
					header[f] = r.Fields[f]
				}
			}
			if detailPass {
				continue
			}
			// campos extras (colunas de logística, por exemplo) vêm só de linhas de cabeçalho
			for f, v := range r.Fields {
				if domain.IsEmpty(header[f]) && !domain.IsEmpty(v) {
					header[f] = v
				}
			}
		}
	}
	g.Header = header

	for _, r := range g.Rows {
		if isInstallment(r) {
			p := parcelaFrom(r)
			g.Parcelas = append(g.Parcelas, p)
			g.TotalParcelas += p.Valor
		}
		if isPayment(r) {
			g.Costs = append(g.Costs, costRecordFrom(r))
		}
		if IsDetail(r) {
			g.SubRows = append(g.SubRows, r)
		}
	}

	sort.SliceStable(g.SubRows, func(i, j int) bool {
		return dateKey(g.SubRows[i]) < dateKey(g.SubRows[j])
	})
}

// dateKey ordena linhas sem data como epoch 0.
func dateKey(r domain.CanonicalRow) int64 {
	if t, ok := r.Date(domain.FieldData); ok {
		return t.Unix()
	}
	if t, ok := r.Date(domain.FieldDataPagamento); ok {
		return t.Unix()
	}
	return 0
}

func parcelaFrom(r domain.CanonicalRow) domain.Parcela {
	p := domain.Parcela{Instituicao: textOf(r, domain.FieldInstituicao)}
	if n, ok := r.Number(domain.FieldParcela); ok {
		p.Numero = int(n)
	}
	if v, ok := r.Number(domain.FieldValorParcela); ok {
		p.Valor = v
	} else if v, ok := r.Number(domain.FieldValorPagamento); ok {
		p.Valor = v
	}
	if t, ok := r.Date(domain.FieldDataPagamento); ok {
		p.Data = t
	} else if t, ok := r.Date(domain.FieldData); ok {
		p.Data = t
	}
	return p
}

func costRecordFrom(r domain.CanonicalRow) domain.CostRecord {
	c := domain.CostRecord{
		Operadora:  textOf(r, domain.FieldInstituicao),
		Modalidade: paymentMode(textOf(r, domain.FieldModalidadePagamento)),
		Parcelas:   1,
	}
	if n, ok := r.Number(domain.FieldNumeroParcelas); ok && n >= 1 {
		c.Parcelas = int(math.Round(n))
	}
	if v, ok := r.Number(domain.FieldValorPagamento); ok {
		c.Valor = v
	} else if v, ok := r.Number(domain.FieldValorParcela); ok {
		c.Valor = v
	}
	return c
}

// paymentMode reconhece "Cartão de Débito", "CREDITO 3X", "crédito à vista" etc.
func paymentMode(s string) domain.PaymentMode {
	h := normalize.Header(s)
	switch {
	case strings.Contains(h, "debit"):
		return domain.PaymentDebit
	case strings.Contains(h, "credit"):
		return domain.PaymentCredit
	}
	return domain.PaymentOther
}

func textOf(r domain.CanonicalRow, field string) string {
	switch v := r.Fields[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
