package orders

import (
	"fmt"
	"strings"

	"orders-service/internal/core/formula"
	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"
)

// FormulaError registra a falha de uma coluna calculada em um pedido.
type FormulaError struct {
	Code          string `json:"codigo"`
	CalculationID string `json:"calculationId"`
	Message       string `json:"erro"`
	Err           error  `json:"-"`
}

func newFormulaError(code, calcID string, err error) FormulaError {
	return FormulaError{Code: code, CalculationID: calcID, Message: err.Error(), Err: err}
}

func (e FormulaError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("cálculo %s: %v", e.CalculationID, e.Err)
	}
	return fmt.Sprintf("cálculo %s, pedido %s: %v", e.CalculationID, e.Code, e.Err)
}

func (e FormulaError) Unwrap() error { return e.Err }

// compiledCalculation guarda a expressão compilada uma única vez por snapshot.
type compiledCalculation struct {
	calc    domain.CustomCalculation
	expr    *formula.Expr
	err     error
	channel string
}

// catalog conhece todas as colunas referenciáveis e os apelidos (rótulos, nomes) de cada uma.
type catalog struct {
	known   map[string]bool
	aliases map[string]string
}

func newCatalog(groups []*domain.OrderGroup, columns []domain.ColumnMeta, calcs []domain.CustomCalculation) *catalog {
	c := &catalog{known: make(map[string]bool), aliases: make(map[string]string)}
	for _, col := range BaseColumns() {
		c.add(col.ID, col.Label)
	}
	for _, col := range columns {
		c.add(col.ID, col.Label)
	}
	for _, calc := range calcs {
		c.add(calc.ID, calc.Name)
	}
	for _, g := range groups {
		for f := range g.Header {
			c.known[f] = true
		}
		for _, r := range g.Rows {
			for f := range r.Fields {
				c.known[f] = true
			}
		}
	}
	return c
}

func (c *catalog) add(id, label string) {
	if id == "" {
		return
	}
	c.known[id] = true
	if key := normalize.Header(label); key != "" {
		if _, taken := c.aliases[key]; !taken {
			c.aliases[key] = id
		}
	}
}

// fieldFor resolve uma referência para o id de campo: id exato, rótulo/nome, rótulo canônico.
func (c *catalog) fieldFor(ref string, record map[string]any) (string, bool) {
	if _, ok := record[ref]; ok || c.known[ref] {
		return ref, true
	}
	key := normalize.Header(ref)
	if id, ok := c.aliases[key]; ok {
		return id, true
	}
	if f, recognized := normalize.CanonicalField(ref); recognized && c.known[f] {
		return f, true
	}
	return "", false
}

// recordResolver resolve colunas contra o registro achatado do pedido corrente.
type recordResolver struct {
	cat    *catalog
	record map[string]any
}

func (r recordResolver) Resolve(ref domain.FormulaItem) (float64, error) {
	field, ok := r.cat.fieldFor(ref.Value, r.record)
	if !ok && ref.Label != "" {
		field, ok = r.cat.fieldFor(ref.Label, r.record)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", formula.ErrUnknownColumn, ref.Value)
	}
	return numericField(r.record[field]), nil
}

// numericField converte o valor do registro; ausente ou não numérico vale 0.
func numericField(v any) float64 {
	if f, ok := domain.AsNumber(v); ok {
		return f
	}
	if n, ok := normalize.Number(v); ok {
		if f, ok := domain.AsNumber(n); ok {
			return f
		}
	}
	return 0
}

func compileCalculations(calcs []domain.CustomCalculation) []compiledCalculation {
	out := make([]compiledCalculation, 0, len(calcs))
	for _, calc := range calcs {
		expr, err := formula.Compile(calc.Formula)
		out = append(out, compiledCalculation{
			calc:    calc,
			expr:    expr,
			err:     err,
			channel: normalize.Header(calc.TargetChannel),
		})
	}
	return out
}

// appliesTo aplica o filtro de canal; sem filtro vale para todos os pedidos.
func (cc compiledCalculation) appliesTo(record map[string]any) bool {
	if cc.channel == "" {
		return true
	}
	canal, _ := record[domain.FieldCanal].(string)
	canal = normalize.Header(canal)
	if canal == "" {
		return false
	}
	return canal == cc.channel || strings.Contains(canal, cc.channel)
}

// applyCalculations avalia as colunas calculadas em ordem; cada resultado fica visível
// para os cálculos seguintes do mesmo pedido.
func applyCalculations(g *domain.OrderGroup, compiled []compiledCalculation, cat *catalog) []FormulaError {
	g.Custom = make(map[string]float64, len(compiled))
	if len(compiled) == 0 {
		return nil
	}
	record := g.Flatten()
	resolver := recordResolver{cat: cat, record: record}

	var errs []FormulaError
	for _, cc := range compiled {
		if !cc.appliesTo(record) {
			continue
		}
		if cc.err != nil {
			// falha de compilação já registrada uma vez no snapshot
			g.Custom[cc.calc.ID] = 0
			record[cc.calc.ID] = 0.0
			continue
		}
		value, err := cc.evaluate(resolver)
		if err != nil {
			errs = append(errs, newFormulaError(g.Code, cc.calc.ID, err))
			value = 0
		}
		g.Custom[cc.calc.ID] = value
		record[cc.calc.ID] = value
	}
	return errs
}

func (cc compiledCalculation) evaluate(r recordResolver) (float64, error) {
	result, err := cc.expr.Eval(r)
	if err != nil {
		return 0, err
	}
	in := cc.calc.Interaction
	if in == nil || in.TargetField == "" {
		return result, nil
	}
	target, err := r.Resolve(domain.FormulaItem{Kind: domain.FormulaColumn, Value: in.TargetField})
	if err != nil {
		return 0, err
	}
	switch in.Operator {
	case "+":
		return target + result, nil
	case "-":
		return target - result, nil
	}
	return 0, fmt.Errorf("operador de interação inválido %q", in.Operator)
}
