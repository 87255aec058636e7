package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"orders-service/internal/core/ingest"
	"orders-service/internal/core/orders"
	"orders-service/internal/domain"
	"orders-service/internal/metrics"
	"orders-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pedidosCSV = "Pedido;Cliente;Valor Total\n1;Ana;100,00\n2;Bia;50,00\n"
	custosCSV  = "Pedido;Operadora;Forma de Pagamento;Parcelas;Valor Pago\n1;Cielo;Crédito;2;100,00\n"
	itensCSV   = "Pedido;Produto;Quantidade;Preço;Custo\n1;Camisa;2;50,00;20,00\n1;Camisa;2;50,00;20,00\n"
)

func csvFile(name, content string) []ingest.File {
	return []ingest.File{{Name: name, Body: strings.NewReader(content)}}
}

type fixture struct {
	svc  Service
	repo store.Repository
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	require.NoError(t, repo.SaveFeeSchedules(ctx, []domain.FeeSchedule{
		{Operator: "Cielo", DebitFee: 1.5, CreditFees: map[int]float64{1: 2.5, 2: 3}},
	}))

	f := &fixture{repo: repo, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()
	f.svc = NewService(repo, ingest.NewService(logger), orders.NewService(logger), metrics.New(), logger, Options{
		SessionTTL: time.Hour,
		Now:        func() time.Time { return f.now },
	})
	return f
}

func recordByCode(t *testing.T, view *View, code string) map[string]any {
	t.Helper()
	for _, rec := range view.Orders {
		if rec[domain.FieldCodigo] == code {
			return rec
		}
	}
	t.Fatalf("pedido %s não encontrado", code)
	return nil
}

func TestStageMergesSourcesWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("pedidos.csv", pedidosCSV))
	require.NoError(t, err)
	require.NotEmpty(t, view.SessionID)
	assert.Equal(t, 2, view.StagedRows)
	require.Len(t, view.Orders, 2)

	view, err = f.svc.Stage(ctx, view.SessionID, domain.SourceCustos, csvFile("custos.csv", custosCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, view.StagedRows)

	first := recordByCode(t, view, "1")
	assert.Equal(t, "Ana", first[domain.FieldNomeCliente])
	assert.Equal(t, 100.0, first[domain.FieldFinal])
	assert.InDelta(t, 3.0, first[domain.FieldTaxaTotalCartao], 1e-9)
	assert.InDelta(t, 150.0, view.Summary.Revenue, 1e-9)

	rows, err := f.repo.Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows, "staging never writes")

	persisted, err := f.svc.View(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, persisted.Orders)
}

func TestCommitPersistsAndOffsetsLaterSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("pedidos.csv", pedidosCSV))
	require.NoError(t, err)
	_, err = f.svc.Stage(ctx, view.SessionID, domain.SourceCustos, csvFile("custos.csv", custosCSV))
	require.NoError(t, err)

	committed, err := f.svc.Commit(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Len(t, committed.Orders, 2)

	rows, err := f.repo.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{rows[0].Seq, rows[1].Seq, rows[2].Seq})

	consolidated, err := f.svc.Consolidated(ctx)
	require.NoError(t, err)
	assert.Len(t, consolidated, 2)

	cols, err := f.repo.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, orders.BaseColumns(), cols)

	assert.True(t, errors.Is(f.svc.Discard(view.SessionID), ErrSessionNotFound), "commit closes the session")

	// uma nova sessão vem depois das linhas gravadas: o cabeçalho gravado continua valendo
	next, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("novos.csv", "Pedido;Cliente\n1;Outra\n3;Caio\n"))
	require.NoError(t, err)
	assert.Len(t, next.Orders, 3)
	assert.Equal(t, "Ana", recordByCode(t, next, "1")[domain.FieldNomeCliente])
	assert.Equal(t, "Caio", recordByCode(t, next, "3")[domain.FieldNomeCliente])

	_, err = f.svc.Commit(ctx, next.SessionID)
	require.NoError(t, err)
	rows, err = f.repo.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, 4, rows[4].Seq)
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.View(ctx, "desconhecida")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.svc.Commit(ctx, "")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.svc.Stage(ctx, "desconhecida", domain.SourcePedidos, csvFile("pedidos.csv", pedidosCSV))
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.svc.Stage(ctx, "", domain.SourceKind("vendas"), csvFile("pedidos.csv", pedidosCSV))
	assert.Error(t, err)

	_, err = f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("vazio.csv", "Pedido;Cliente\n"))
	assert.True(t, errors.Is(err, ErrNoRows))

	_, err = f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("notas.pdf", "x"))
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("pedidos.csv", pedidosCSV))
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	_, err = f.svc.View(ctx, view.SessionID)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.View(ctx, view.SessionID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestCalculationsKeepColumnsInSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("pedidos.csv", pedidosCSV))
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, view.SessionID)
	require.NoError(t, err)

	calc, err := f.svc.SaveCalculation(ctx, domain.CustomCalculation{
		Name: "Metade",
		Formula: []domain.FormulaItem{
			{Kind: domain.FormulaColumn, Value: "final"},
			{Kind: domain.FormulaOperator, Value: "/"},
			{Kind: domain.FormulaNumber, Value: "2"},
		},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(calc.ID, "calc_"))

	cols, err := f.svc.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, calc.ID, cols[len(cols)-1].ID)

	current, err := f.svc.View(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, recordByCode(t, current, "1")[calc.ID])

	require.NoError(t, f.svc.DeleteCalculation(ctx, calc.ID))
	cols, err = f.svc.Columns(ctx)
	require.NoError(t, err)
	for _, c := range cols {
		assert.NotEqual(t, calc.ID, c.ID)
	}
	stored, err := f.repo.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, orders.BaseColumns(), stored, "the stored column list is pruned too")

	assert.True(t, errors.Is(f.svc.DeleteCalculation(ctx, calc.ID), store.ErrNotFound))
}

func commitFile(t *testing.T, f *fixture, kind domain.SourceKind, name, content string) *View {
	t.Helper()
	ctx := context.Background()
	view, err := f.svc.Stage(ctx, "", kind, csvFile(name, content))
	require.NoError(t, err)
	committed, err := f.svc.Commit(ctx, view.SessionID)
	require.NoError(t, err)
	return committed
}

func TestReimportingTheSameFileKeepsTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := commitFile(t, f, domain.SourcePedidos, "itens.csv", itensCSV)
	order := recordByCode(t, first, "1")
	assert.Equal(t, 200.0, order[domain.FieldFinal])
	assert.Equal(t, 4.0, order[domain.FieldQuantidadeTotal], "identical lines in one file are distinct items")
	assert.Equal(t, 80.0, order[domain.FieldCustoTotal])

	for _, name := range []string{"itens.csv", "itens (1).csv"} {
		again := commitFile(t, f, domain.SourcePedidos, name, itensCSV)
		order = recordByCode(t, again, "1")
		assert.Equal(t, 200.0, order[domain.FieldFinal], name)
		assert.Equal(t, 4.0, order[domain.FieldQuantidadeTotal], name)
		assert.Equal(t, 80.0, order[domain.FieldCustoTotal], name)
	}

	rows, err := f.repo.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// o mesmo arquivo duas vezes na mesma sessão também não duplica
	view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("itens.csv", itensCSV))
	require.NoError(t, err)
	view, err = f.svc.Stage(ctx, view.SessionID, domain.SourcePedidos, csvFile("itens.csv", itensCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, view.StagedRows)
	assert.Equal(t, 200.0, recordByCode(t, view, "1")[domain.FieldFinal])
}

// failingOrders falha a primeira gravação de pedidos consolidados.
type failingOrders struct {
	store.Repository
	failures int
}

func (r *failingOrders) SaveOrders(ctx context.Context, records []map[string]any) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("indisponível")
	}
	return r.Repository.SaveOrders(ctx, records)
}

func TestCommitRetryDoesNotDuplicateRows(t *testing.T) {
	ctx := context.Background()
	repo := &failingOrders{Repository: store.NewMemoryRepository(), failures: 1}
	logger := zap.NewNop()
	svc := NewService(repo, ingest.NewService(logger), orders.NewService(logger), nil, logger, Options{})

	view, err := svc.Stage(ctx, "", domain.SourcePedidos, csvFile("itens.csv", itensCSV))
	require.NoError(t, err)

	_, err = svc.Commit(ctx, view.SessionID)
	require.Error(t, err)

	committed, err := svc.Commit(ctx, view.SessionID)
	require.NoError(t, err, "the session survives a failed commit")
	assert.Equal(t, 4.0, recordByCode(t, committed, "1")[domain.FieldQuantidadeTotal])

	rows, err := repo.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestConcurrentCommitsKeepEveryRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const sessions = 8
	ids := make([]string, sessions)
	for i := range ids {
		csv := fmt.Sprintf("Pedido;Cliente;Valor Total\n%d;Cliente %d;10,00\n", i+1, i)
		view, err := f.svc.Stage(ctx, "", domain.SourcePedidos, csvFile("pedidos.csv", csv))
		require.NoError(t, err)
		ids[i] = view.SessionID
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := f.svc.Commit(ctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows, err := f.repo.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, sessions)
	seqs := make(map[int]bool, sessions)
	for _, r := range rows {
		seqs[r.Seq] = true
	}
	assert.Len(t, seqs, sessions, "every committed row gets its own Seq")

	consolidated, err := f.svc.Consolidated(ctx)
	require.NoError(t, err)
	assert.Len(t, consolidated, sessions)
}
