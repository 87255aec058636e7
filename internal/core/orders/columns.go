package orders

import "orders-service/internal/domain"

// BaseColumns é o catálogo fixo da tabela de pedidos.
func BaseColumns() []domain.ColumnMeta {
	return []domain.ColumnMeta{
		{ID: domain.FieldData, Label: "Data", Sortable: true},
		{ID: domain.FieldCodigo, Label: "Código", Sortable: true},
		{ID: domain.FieldTipo, Label: "Tipo", Sortable: true},
		{ID: domain.FieldNomeCliente, Label: "Cliente", Sortable: true},
		{ID: domain.FieldVendedor, Label: "Vendedor", Sortable: true},
		{ID: domain.FieldCidade, Label: "Cidade", Sortable: true},
		{ID: domain.FieldCanal, Label: "Canal de Venda", Sortable: true},
		{ID: domain.FieldCanalLogistico, Label: "Canal Logístico", Sortable: true},
		{ID: domain.FieldFidelidade, Label: "Fidelidade", Sortable: true},
		{ID: domain.FieldQuantidadeTotal, Label: "Quantidade", Sortable: true},
		{ID: domain.FieldFinal, Label: "Valor Final", Sortable: true},
		{ID: domain.FieldCustoTotal, Label: "Custo Total", Sortable: true},
		{ID: domain.FieldFrete, Label: "Frete", Sortable: true},
		{ID: domain.FieldCustoFrete, Label: "Custo Frete", Sortable: true},
		{ID: domain.FieldValorDescontos, Label: "Descontos", Sortable: true},
		{ID: domain.FieldCustoEmbalagem, Label: "Custo Embalagem", Sortable: true},
		{ID: domain.FieldTaxaTotalCartao, Label: "Taxa Cartão", Sortable: true},
		{ID: domain.FieldTotalParcelas, Label: "Total Parcelas", Sortable: true},
	}
}

// SyncColumns mantém as colunas calculadas alinhadas aos cálculos existentes: remove as
// órfãs, atualiza rótulo/percentual das que continuam e acrescenta as que faltam.
// Colunas não calculadas são preservadas na ordem recebida; lista vazia parte do catálogo base.
func SyncColumns(existing []domain.ColumnMeta, calcs []domain.CustomCalculation) []domain.ColumnMeta {
	if len(existing) == 0 {
		existing = BaseColumns()
	}
	byID := make(map[string]domain.CustomCalculation, len(calcs))
	for _, c := range calcs {
		byID[c.ID] = c
	}

	out := make([]domain.ColumnMeta, 0, len(existing)+len(calcs))
	seen := make(map[string]bool, len(existing))
	for _, col := range existing {
		if seen[col.ID] {
			continue
		}
		if col.Custom {
			calc, ok := byID[col.ID]
			if !ok {
				continue
			}
			col.Label = calc.Name
			col.Percentage = calc.IsPercentage
		}
		seen[col.ID] = true
		out = append(out, col)
	}
	for _, c := range calcs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, calculationColumn(c))
	}
	return out
}

func calculationColumn(c domain.CustomCalculation) domain.ColumnMeta {
	return domain.ColumnMeta{
		ID:         c.ID,
		Label:      c.Name,
		Sortable:   true,
		Custom:     true,
		Percentage: c.IsPercentage,
	}
}
