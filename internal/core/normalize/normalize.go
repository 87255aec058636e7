// Package normalize converte linhas brutas de planilha em linhas canônicas: rótulos
// livres viram campos conhecidos e células viram datas, números ou textos.
package normalize

import (
	"sort"
	"strings"

	"orders-service/internal/domain"
)

// fieldKind é o tipo esperado de um campo canônico.
type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindDate
	kindCode
)

var fieldKinds = map[string]fieldKind{
	domain.FieldCodigo:          kindCode,
	domain.FieldData:            kindDate,
	domain.FieldDataPagamento:   kindDate,
	domain.FieldFinal:           kindNumber,
	domain.FieldFrete:           kindNumber,
	domain.FieldQuantidadeItens: kindNumber,
	domain.FieldValorUnitario:   kindNumber,
	domain.FieldQuantidade:      kindNumber,
	domain.FieldCustoUnitario:   kindNumber,
	domain.FieldCustoFrete:      kindNumber,
	domain.FieldValorDescontos:  kindNumber,
	domain.FieldParcela:         kindNumber,
	domain.FieldValorParcela:    kindNumber,
	domain.FieldNumeroParcelas:  kindNumber,
	domain.FieldValorPagamento:  kindNumber,
}

// Row normaliza uma RawRow. seq é a posição explícita da linha na ordem de ingestão.
// Uma célula ruim nunca derruba a linha: ou passa adiante como veio ou é omitida.
func Row(raw domain.RawRow, seq int) domain.CanonicalRow {
	out := domain.CanonicalRow{
		Source: raw.Source,
		Seq:    seq,
		Fields: make(map[string]any, len(raw.Cells)),
	}

	// rótulos em ordem fixa para que colisões (dois rótulos, mesmo campo) sejam determinísticas
	labels := make([]string, 0, len(raw.Cells))
	for label := range raw.Cells {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		field, _ := CanonicalField(label)
		if !domain.IsEmpty(out.Fields[field]) {
			continue
		}
		if v, ok := Value(field, raw.Cells[label]); ok {
			out.Fields[field] = v
		}
	}
	return out
}

// Value limpa uma célula de acordo com o tipo do campo canônico. O segundo retorno é
// false quando a célula deve ser omitida (vazia ou data inválida).
func Value(field string, raw any) (any, bool) {
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	if domain.IsEmpty(raw) {
		return nil, false
	}

	switch fieldKinds[field] {
	case kindDate:
		t, ok := Date(raw)
		if !ok {
			return nil, false
		}
		return t, true
	case kindCode:
		if s, ok := raw.(string); ok {
			return s, true
		}
		c := Code(raw)
		return c, c != ""
	case kindNumber:
		v, _ := Number(raw)
		return v, true
	}

	if isGenerated(field) {
		v, _ := Number(raw)
		return v, true
	}
	if f, ok := domain.AsNumber(raw); ok {
		return f, true
	}
	return raw, true
}

// isGenerated reports whether field is not one of the canonical names, i.e. came from the
// snake_case fallback.
func isGenerated(field string) bool {
	_, canonical := canonicalFields[field]
	return !canonical
}

var canonicalFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(labelTable))
	for _, f := range labelTable {
		m[f] = struct{}{}
	}
	for _, h := range heuristics {
		m[h.field] = struct{}{}
	}
	return m
}()
