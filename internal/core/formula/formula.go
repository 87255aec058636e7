// Package formula compila e avalia as fórmulas de colunas calculadas. A gramática é
// restrita a números, referências de coluna, + - * / e parênteses:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = ("+" | "-") factor | number | column | "(" expr ")"
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"
)

var (
	ErrEmptyFormula     = errors.New("fórmula vazia")
	ErrUnexpectedToken  = errors.New("token inesperado")
	ErrUnbalancedParens = errors.New("parênteses desbalanceados")
	ErrInvalidNumber    = errors.New("número inválido")
	ErrUnknownColumn    = errors.New("coluna desconhecida")
	ErrNonFinite        = errors.New("resultado não finito")
)

// EvalError localiza a falha no índice do token da fórmula.
type EvalError struct {
	Pos int
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("posição %d: %v", e.Pos, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Resolver devolve o valor numérico de uma referência de coluna para o pedido corrente.
type Resolver interface {
	Resolve(ref domain.FormulaItem) (float64, error)
}

// ResolverFunc adapta uma função a Resolver.
type ResolverFunc func(ref domain.FormulaItem) (float64, error)

func (f ResolverFunc) Resolve(ref domain.FormulaItem) (float64, error) { return f(ref) }

type node interface {
	eval(r Resolver) (float64, error)
}

type numberNode float64

func (n numberNode) eval(Resolver) (float64, error) { return float64(n), nil }

type columnNode struct {
	pos int
	ref domain.FormulaItem
}

func (n columnNode) eval(r Resolver) (float64, error) {
	v, err := r.Resolve(n.ref)
	if err != nil {
		return 0, &EvalError{Pos: n.pos, Err: err}
	}
	return v, nil
}

type negNode struct{ x node }

func (n negNode) eval(r Resolver) (float64, error) {
	v, err := n.x.eval(r)
	return -v, err
}

type binaryNode struct {
	pos  int
	op   byte
	l, r node
}

func (n binaryNode) eval(r Resolver) (float64, error) {
	a, err := n.l.eval(r)
	if err != nil {
		return 0, err
	}
	b, err := n.r.eval(r)
	if err != nil {
		return 0, err
	}
	var v float64
	switch n.op {
	case '+':
		v = a + b
	case '-':
		v = a - b
	case '*':
		v = a * b
	case '/':
		v = a / b
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvalError{Pos: n.pos, Err: ErrNonFinite}
	}
	return v, nil
}

// Expr é uma fórmula compilada, reutilizável para todos os pedidos.
type Expr struct {
	root node
}

// Eval avalia a expressão com os valores fornecidos por r.
func (e *Expr) Eval(r Resolver) (float64, error) {
	return e.root.eval(r)
}

// Compile transforma a sequência de tokens em uma árvore de expressão.
func Compile(items []domain.FormulaItem) (*Expr, error) {
	if len(items) == 0 {
		return nil, &EvalError{Pos: 0, Err: ErrEmptyFormula}
	}
	p := &parser{items: items}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(items) {
		if p.isOp(")") {
			return nil, &EvalError{Pos: p.pos, Err: ErrUnbalancedParens}
		}
		return nil, &EvalError{Pos: p.pos, Err: ErrUnexpectedToken}
	}
	return &Expr{root: root}, nil
}

type parser struct {
	items []domain.FormulaItem
	pos   int
}

func (p *parser) isOp(op string) bool {
	if p.pos >= len(p.items) {
		return false
	}
	it := p.items[p.pos]
	return it.Kind == domain.FormulaOperator && opValue(it) == op
}

// opValue aceita os símbolos usados pela calculadora da interface (× e ÷).
func opValue(it domain.FormulaItem) string {
	switch v := strings.TrimSpace(it.Value); v {
	case "×", "x", "X":
		return "*"
	case "÷":
		return "/"
	default:
		return v
	}
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		pos := p.pos
		op := opValue(p.items[pos])[0]
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{pos: pos, op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		pos := p.pos
		op := opValue(p.items[pos])[0]
		p.pos++
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{pos: pos, op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) factor() (node, error) {
	if p.pos >= len(p.items) {
		return nil, &EvalError{Pos: p.pos, Err: ErrUnexpectedToken}
	}
	switch {
	case p.isOp("-"):
		p.pos++
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	case p.isOp("+"):
		p.pos++
		return p.factor()
	case p.isOp("("):
		open := p.pos
		p.pos++
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			return nil, &EvalError{Pos: open, Err: ErrUnbalancedParens}
		}
		p.pos++
		return x, nil
	}

	it := p.items[p.pos]
	switch it.Kind {
	case domain.FormulaNumber:
		v, ok := normalize.Number(strings.TrimSpace(it.Value))
		f, isNum := domain.AsNumber(v)
		if !ok || !isNum {
			return nil, &EvalError{Pos: p.pos, Err: ErrInvalidNumber}
		}
		p.pos++
		return numberNode(f), nil
	case domain.FormulaColumn:
		n := columnNode{pos: p.pos, ref: it}
		p.pos++
		return n, nil
	}
	return nil, &EvalError{Pos: p.pos, Err: ErrUnexpectedToken}
}

// Evaluate compila e avalia em uma única chamada.
func Evaluate(items []domain.FormulaItem, r Resolver) (float64, error) {
	e, err := Compile(items)
	if err != nil {
		return 0, err
	}
	return e.Eval(r)
}
