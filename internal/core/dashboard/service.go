// package dashboard/service.go
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"orders-service/internal/core/ingest"
	"orders-service/internal/core/normalize"
	"orders-service/internal/core/orders"
	"orders-service/internal/domain"
	"orders-service/internal/metrics"
	"orders-service/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound indica sessão de importação inexistente ou expirada.
var ErrSessionNotFound = errors.New("sessão de importação não encontrada")

// ErrNoRows indica upload sem nenhuma linha aproveitável.
var ErrNoRows = errors.New("nenhuma linha encontrada nos arquivos enviados")

// View é a tabela de pedidos pronta para exibição.
type View struct {
	SessionID     string                `json:"sessionId,omitempty"`
	Orders        []map[string]any      `json:"orders"`
	Columns       []domain.ColumnMeta   `json:"columns"`
	Summary       orders.Summary        `json:"summary"`
	FormulaErrors []orders.FormulaError `json:"formulaErrors,omitempty"`
	StagedRows    int                   `json:"stagedRows,omitempty"`
}

// stagedRow é uma linha importada ainda não gravada.
type stagedRow struct {
	kind domain.SourceKind
	row  domain.CanonicalRow
}

type session struct {
	id        string
	rows      []stagedRow
	updatedAt time.Time
}

// Service define as operações do painel de pedidos.
type Service interface {
	Stage(ctx context.Context, sessionID string, kind domain.SourceKind, files []ingest.File) (*View, error)
	View(ctx context.Context, sessionID string) (*View, error)
	Commit(ctx context.Context, sessionID string) (*View, error)
	Discard(sessionID string) error
	Consolidated(ctx context.Context) ([]map[string]any, error)

	Columns(ctx context.Context) ([]domain.ColumnMeta, error)
	Calculations(ctx context.Context) ([]domain.CustomCalculation, error)
	SaveCalculation(ctx context.Context, calc domain.CustomCalculation) (domain.CustomCalculation, error)
	DeleteCalculation(ctx context.Context, id string) error
}

// Options ajusta o serviço; zero vale o padrão.
type Options struct {
	SessionTTL time.Duration
	Now        func() time.Time
}

type service struct {
	repo    store.Repository
	parser  ingest.Service
	engine  orders.Service
	metrics *metrics.Recorder
	logger  *zap.Logger

	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	// commitMu serializa commits: Seq novos são derivados das linhas já gravadas.
	commitMu sync.Mutex
}

// NewService cria o serviço do painel.
func NewService(repo store.Repository, parser ingest.Service, engine orders.Service, rec *metrics.Recorder, logger *zap.Logger, opts Options) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		repo:     repo,
		parser:   parser,
		engine:   engine,
		metrics:  rec,
		logger:   logger,
		ttl:      opts.SessionTTL,
		now:      opts.Now,
		sessions: make(map[string]*session),
	}
}

// Stage lê e normaliza os arquivos e os guarda na sessão, sem gravar nada.
func (s *service) Stage(ctx context.Context, sessionID string, kind domain.SourceKind, files []ingest.File) (*View, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tipo de planilha inválido: %q", kind)
	}
	raws, err := s.parser.Parse(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, ErrNoRows
	}

	s.mu.Lock()
	s.expireLocked()
	var sess *session
	if sessionID == "" {
		sess = &session{id: uuid.NewString()}
		s.sessions[sess.id] = sess
	} else if sess = s.sessions[sessionID]; sess == nil {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	// Seq local à sessão; o Seq definitivo é atribuído no snapshot
	next := len(sess.rows)
	rows := make([]domain.CanonicalRow, len(raws))
	for i, raw := range raws {
		rows[i] = normalize.Row(raw, next+i)
	}
	assignKeys(kind, rows)
	for _, row := range rows {
		sess.rows = append(sess.rows, stagedRow{kind: kind, row: row})
	}
	sess.updatedAt = s.now()
	id := sess.id
	s.mu.Unlock()

	s.metrics.AddImported(string(kind), len(raws))
	s.logger.Info("linhas preparadas para importação",
		zap.String("sessao", id),
		zap.String("tipo", string(kind)),
		zap.Int("linhas", len(raws)),
		zap.Int("arquivos", len(files)),
	)
	return s.View(ctx, id)
}

// View recalcula a tabela com as linhas gravadas e, se informada, as da sessão.
func (s *service) View(ctx context.Context, sessionID string) (*View, error) {
	staged, err := s.staged(sessionID)
	if err != nil {
		return nil, err
	}
	snap, placed, err := s.snapshot(ctx, staged)
	if err != nil {
		return nil, err
	}
	res := s.compute(snap)
	return &View{
		SessionID:     sessionID,
		Orders:        res.Records(),
		Columns:       res.Columns,
		Summary:       res.Summary,
		FormulaErrors: res.FormulaErrors,
		StagedRows:    len(placed),
	}, nil
}

// Commit grava as linhas da sessão e os pedidos consolidados, e encerra a sessão.
func (s *service) Commit(ctx context.Context, sessionID string) (*View, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	staged, err := s.staged(sessionID)
	if err != nil {
		return nil, err
	}
	snap, placed, err := s.snapshot(ctx, staged)
	if err != nil {
		return nil, err
	}

	byKind := make(map[domain.SourceKind][]domain.CanonicalRow)
	for _, sr := range placed {
		byKind[sr.kind] = append(byKind[sr.kind], sr.row)
	}
	for kind, rows := range byKind {
		if err := s.repo.SaveRows(ctx, kind, rows); err != nil {
			return nil, fmt.Errorf("falha ao gravar linhas de %s: %w", kind, err)
		}
	}

	res := s.compute(snap)
	records := res.Records()
	if err := s.repo.SaveOrders(ctx, records); err != nil {
		return nil, fmt.Errorf("falha ao gravar pedidos consolidados: %w", err)
	}
	if err := s.repo.SaveColumns(ctx, res.Columns); err != nil {
		return nil, fmt.Errorf("falha ao gravar colunas: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.logger.Info("importação confirmada",
		zap.String("sessao", sessionID),
		zap.Int("linhas", len(placed)),
		zap.Int("pedidos", len(records)),
	)
	return &View{
		Orders:        records,
		Columns:       res.Columns,
		Summary:       res.Summary,
		FormulaErrors: res.FormulaErrors,
	}, nil
}

// Discard descarta a sessão sem gravar nada.
func (s *service) Discard(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Consolidated devolve os pedidos achatados gravados no último commit.
func (s *service) Consolidated(ctx context.Context) ([]map[string]any, error) {
	return s.repo.Orders(ctx)
}

func (s *service) Columns(ctx context.Context) ([]domain.ColumnMeta, error) {
	cols, err := s.repo.Columns(ctx)
	if err != nil {
		return nil, err
	}
	calcs, err := s.repo.Calculations(ctx)
	if err != nil {
		return nil, err
	}
	return orders.SyncColumns(cols, calcs), nil
}

func (s *service) Calculations(ctx context.Context) ([]domain.CustomCalculation, error) {
	return s.repo.Calculations(ctx)
}

// SaveCalculation grava o cálculo (gerando id quando vazio) e sincroniza as colunas.
func (s *service) SaveCalculation(ctx context.Context, calc domain.CustomCalculation) (domain.CustomCalculation, error) {
	if calc.ID == "" {
		calc.ID = "calc_" + uuid.NewString()
	}
	if err := s.repo.SaveCalculation(ctx, calc); err != nil {
		return calc, err
	}
	return calc, s.syncColumns(ctx)
}

// DeleteCalculation remove o cálculo e a coluna correspondente.
func (s *service) DeleteCalculation(ctx context.Context, id string) error {
	if err := s.repo.DeleteCalculation(ctx, id); err != nil {
		return err
	}
	return s.syncColumns(ctx)
}

func (s *service) syncColumns(ctx context.Context) error {
	cols, err := s.Columns(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SaveColumns(ctx, cols); err != nil {
		return fmt.Errorf("falha ao sincronizar colunas: %w", err)
	}
	return nil
}

// staged copia as linhas da sessão; id vazio significa só o que já foi gravado.
func (s *service) staged(sessionID string) ([]stagedRow, error) {
	if sessionID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]stagedRow(nil), sess.rows...), nil
}

func (s *service) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Info("sessão de importação expirada", zap.String("sessao", id))
		}
	}
}

// snapshot monta a entrada do motor. Uma linha da sessão com a mesma Key de uma linha
// gravada (ou de outra linha da sessão) a substitui e herda o seu Seq; as demais recebem
// Seq após o maior Seq gravado, na ordem em que foram preparadas.
func (s *service) snapshot(ctx context.Context, staged []stagedRow) (orders.Snapshot, []stagedRow, error) {
	var snap orders.Snapshot
	rows, err := s.repo.Rows(ctx)
	if err != nil {
		return snap, nil, fmt.Errorf("falha ao carregar linhas: %w", err)
	}
	next := 0
	persisted := make(map[string]int, len(rows))
	for i, r := range rows {
		if r.Seq >= next {
			next = r.Seq + 1
		}
		if r.Key != "" {
			persisted[r.Key] = i
		}
	}

	var placed []stagedRow
	seen := make(map[string]int)
	for _, sr := range staged {
		key := sr.row.Key
		if i, ok := seen[key]; ok && key != "" {
			sr.row.Seq = placed[i].row.Seq
			placed[i] = sr
		} else {
			if j, ok := persisted[key]; ok && key != "" {
				sr.row.Seq = rows[j].Seq
			} else {
				sr.row.Seq = next
				next++
			}
			if key != "" {
				seen[key] = len(placed)
			}
			placed = append(placed, sr)
		}
		if j, ok := persisted[key]; ok && key != "" {
			rows[j] = sr.row
		}
	}
	for _, sr := range placed {
		if _, ok := persisted[sr.row.Key]; ok && sr.row.Key != "" {
			continue
		}
		rows = append(rows, sr.row)
	}
	snap.Rows = rows

	if snap.Packaging, err = s.repo.PackagingRules(ctx); err != nil {
		return snap, nil, fmt.Errorf("falha ao carregar embalagens: %w", err)
	}
	if snap.Fees, err = s.repo.FeeSchedules(ctx); err != nil {
		return snap, nil, fmt.Errorf("falha ao carregar taxas: %w", err)
	}
	if snap.Calculations, err = s.repo.Calculations(ctx); err != nil {
		return snap, nil, fmt.Errorf("falha ao carregar cálculos: %w", err)
	}
	if snap.Columns, err = s.repo.Columns(ctx); err != nil {
		return snap, nil, fmt.Errorf("falha ao carregar colunas: %w", err)
	}
	return snap, placed, nil
}

func (s *service) compute(snap orders.Snapshot) orders.Result {
	start := time.Now()
	res := s.engine.Compute(snap)
	s.metrics.ObserveCompute(time.Since(start), len(res.Groups), res.Unassignable, len(res.FormulaErrors))
	return res
}

// assignKeys dá a cada linha de um upload uma Key estável: tipo, hash do conteúdo
// normalizado e a ocorrência desse conteúdo no upload. Reimportar o mesmo arquivo gera as
// mesmas Keys; linhas idênticas no mesmo arquivo continuam distintas.
func assignKeys(kind domain.SourceKind, rows []domain.CanonicalRow) {
	occurrences := make(map[string]int, len(rows))
	for i := range rows {
		content, err := json.Marshal(rows[i].Fields)
		if err != nil {
			content = []byte(fmt.Sprint(rows[i].Fields))
		}
		sum := sha256.Sum256(append([]byte(kind+"\x00"), content...))
		digest := hex.EncodeToString(sum[:12])
		rows[i].Key = fmt.Sprintf("%s-%s-%d", kind, digest, occurrences[digest])
		occurrences[digest]++
	}
}
