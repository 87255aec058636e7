package formula

import (
	"errors"
	"testing"

	"orders-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func col(id string) domain.FormulaItem {
	return domain.FormulaItem{Kind: domain.FormulaColumn, Value: id, Label: id}
}

func num(v string) domain.FormulaItem {
	return domain.FormulaItem{Kind: domain.FormulaNumber, Value: v}
}

func op(v string) domain.FormulaItem {
	return domain.FormulaItem{Kind: domain.FormulaOperator, Value: v}
}

func mapResolver(values map[string]float64) Resolver {
	return ResolverFunc(func(ref domain.FormulaItem) (float64, error) {
		v, ok := values[ref.Value]
		if !ok {
			return 0, ErrUnknownColumn
		}
		return v, nil
	})
}

func TestEvaluate(t *testing.T) {
	values := map[string]float64{"price": 200, "final": 150, "custoTotal": 50}
	tests := []struct {
		name  string
		items []domain.FormulaItem
		want  float64
	}{
		{"column times literal", []domain.FormulaItem{col("price"), op("*"), num("0.1")}, 20},
		{"precedence", []domain.FormulaItem{num("2"), op("+"), num("3"), op("*"), num("4")}, 14},
		{"parentheses", []domain.FormulaItem{op("("), num("2"), op("+"), num("3"), op(")"), op("*"), num("4")}, 20},
		{"left associative minus", []domain.FormulaItem{num("10"), op("-"), num("3"), op("-"), num("2")}, 5},
		{"left associative divide", []domain.FormulaItem{num("100"), op("/"), num("10"), op("/"), num("2")}, 5},
		{"unary minus", []domain.FormulaItem{op("-"), col("custoTotal"), op("+"), col("final")}, 100},
		{"comma decimal literal", []domain.FormulaItem{col("final"), op("*"), num("0,5")}, 75},
		{"margin", []domain.FormulaItem{op("("), col("final"), op("-"), col("custoTotal"), op(")"), op("/"), col("final"), op("×"), num("100")}, 66.66666666666667},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.items, mapResolver(values))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.FormulaItem
		want  error
	}{
		{"empty", nil, ErrEmptyFormula},
		{"dangling operator", []domain.FormulaItem{num("1"), op("+")}, ErrUnexpectedToken},
		{"missing close", []domain.FormulaItem{op("("), num("1"), op("+"), num("2")}, ErrUnbalancedParens},
		{"extra close", []domain.FormulaItem{num("1"), op(")")}, ErrUnbalancedParens},
		{"two numbers", []domain.FormulaItem{num("1"), num("2")}, ErrUnexpectedToken},
		{"bad literal", []domain.FormulaItem{num("abc")}, ErrInvalidNumber},
		{"unknown operator", []domain.FormulaItem{num("1"), op("^"), num("2")}, ErrUnexpectedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.items)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			var evalErr *EvalError
			assert.True(t, errors.As(err, &evalErr))
		})
	}
}

func TestEvalErrors(t *testing.T) {
	r := mapResolver(map[string]float64{"zero": 0, "final": 10})

	_, err := Evaluate([]domain.FormulaItem{col("final"), op("/"), col("zero")}, r)
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = Evaluate([]domain.FormulaItem{col("inexistente"), op("+"), num("1")}, r)
	assert.ErrorIs(t, err, ErrUnknownColumn)
	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, 0, evalErr.Pos)
}

func TestCompiledExprIsReusable(t *testing.T) {
	expr, err := Compile([]domain.FormulaItem{col("final"), op("*"), num("2")})
	require.NoError(t, err)

	a, err := expr.Eval(mapResolver(map[string]float64{"final": 1}))
	require.NoError(t, err)
	b, err := expr.Eval(mapResolver(map[string]float64{"final": 5}))
	require.NoError(t, err)

	assert.Equal(t, 2.0, a)
	assert.Equal(t, 10.0, b)
}
