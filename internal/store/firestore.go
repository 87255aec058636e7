// package store/firestore.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"orders-service/internal/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// rowDocument é o formato persistido de uma linha normalizada.
type rowDocument struct {
	Source string         `firestore:"source"`
	Seq    int            `firestore:"seq"`
	Fields map[string]any `firestore:"fields"`
}

// feeDocument guarda as taxas de crédito com chave texto; o Firestore não aceita chave inteira.
type feeDocument struct {
	Operator   string             `firestore:"operator"`
	DebitFee   float64            `firestore:"debitFee"`
	CreditFees map[string]float64 `firestore:"creditFees"`
}

type columnsDocument struct {
	Items []domain.ColumnMeta `firestore:"items"`
}

type firestoreRepository struct {
	db *firestore.Client
}

// NewFirestoreRepository cria o repositório sobre um cliente Firestore já conectado.
func NewFirestoreRepository(db *firestore.Client) Repository {
	return &firestoreRepository{db: db}
}

func (r *firestoreRepository) Rows(ctx context.Context) ([]domain.CanonicalRow, error) {
	var rows []domain.CanonicalRow
	for _, kind := range rowCollections {
		iter := r.db.Collection(string(kind)).OrderBy("seq", firestore.Asc).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("erro ao consultar %s: %w", kind, err)
			}
			var d rowDocument
			if err := doc.DataTo(&d); err != nil {
				iter.Stop()
				return nil, fmt.Errorf("erro ao ler linha %s/%s: %w", kind, doc.Ref.ID, err)
			}
			rows = append(rows, domain.CanonicalRow{
				Source: d.Source,
				Seq:    d.Seq,
				Key:    doc.Ref.ID,
				Fields: fromFirestoreMap(d.Fields),
			})
		}
		iter.Stop()
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows, nil
}

// rowDocID usa o Seq com largura fixa; só vale para linhas sem Key.
func rowDocID(seq int) string {
	return fmt.Sprintf("%010d", seq)
}

func (r *firestoreRepository) SaveRows(ctx context.Context, kind domain.SourceKind, rows []domain.CanonicalRow) error {
	if !kind.Valid() {
		return fmt.Errorf("tipo de planilha inválido: %q", kind)
	}
	col := r.db.Collection(string(kind))
	return r.bulkSet(ctx, len(rows), func(i int) (*firestore.DocumentRef, any) {
		row := rows[i]
		return col.Doc(rowKey(row)), rowDocument{Source: row.Source, Seq: row.Seq, Fields: row.Fields}
	})
}

func (r *firestoreRepository) Orders(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	err := r.each(ctx, CollectionOrders, func(doc *firestore.DocumentSnapshot) error {
		out = append(out, fromFirestoreMap(doc.Data()))
		return nil
	})
	return out, err
}

func (r *firestoreRepository) SaveOrders(ctx context.Context, records []map[string]any) error {
	col := r.db.Collection(CollectionOrders)
	var valid []map[string]any
	for _, rec := range records {
		if code, _ := rec[domain.FieldCodigo].(string); code != "" {
			valid = append(valid, rec)
		}
	}
	return r.bulkSet(ctx, len(valid), func(i int) (*firestore.DocumentRef, any) {
		return col.Doc(valid[i][domain.FieldCodigo].(string)), valid[i]
	})
}

// bulkSet grava n documentos com o BulkWriter e devolve o primeiro erro encontrado.
func (r *firestoreRepository) bulkSet(ctx context.Context, n int, doc func(i int) (*firestore.DocumentRef, any)) error {
	if n == 0 {
		return nil
	}
	bw := r.db.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, n)
	for i := 0; i < n; i++ {
		ref, data := doc(i)
		job, err := bw.Set(ref, data)
		if err != nil {
			bw.End()
			return fmt.Errorf("erro ao enfileirar %s: %w", ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("erro ao gravar no Firestore: %w", err)
		}
	}
	return nil
}

func (r *firestoreRepository) Calculations(ctx context.Context) ([]domain.CustomCalculation, error) {
	var calcs []domain.CustomCalculation
	err := r.each(ctx, CollectionCalculations, func(doc *firestore.DocumentSnapshot) error {
		var c domain.CustomCalculation
		if err := doc.DataTo(&c); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = doc.Ref.ID
		}
		calcs = append(calcs, c)
		return nil
	})
	return calcs, err
}

func (r *firestoreRepository) SaveCalculation(ctx context.Context, calc domain.CustomCalculation) error {
	if _, err := r.db.Collection(CollectionCalculations).Doc(calc.ID).Set(ctx, calc); err != nil {
		return fmt.Errorf("erro ao salvar cálculo %s: %w", calc.ID, err)
	}
	return nil
}

func (r *firestoreRepository) DeleteCalculation(ctx context.Context, id string) error {
	ref := r.db.Collection(CollectionCalculations).Doc(id)
	snap, err := ref.Get(ctx)
	if snap != nil && !snap.Exists() {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("erro ao consultar cálculo %s: %w", id, err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("erro ao remover cálculo %s: %w", id, err)
	}
	return nil
}

func (r *firestoreRepository) PackagingRules(ctx context.Context) ([]domain.PackagingRule, error) {
	var rules []domain.PackagingRule
	err := r.each(ctx, CollectionPackaging, func(doc *firestore.DocumentSnapshot) error {
		var rule domain.PackagingRule
		if err := doc.DataTo(&rule); err != nil {
			return err
		}
		if rule.ID == "" {
			rule.ID = doc.Ref.ID
		}
		rules = append(rules, rule)
		return nil
	})
	return rules, err
}

func (r *firestoreRepository) FeeSchedules(ctx context.Context) ([]domain.FeeSchedule, error) {
	var fees []domain.FeeSchedule
	err := r.each(ctx, CollectionFees, func(doc *firestore.DocumentSnapshot) error {
		var d feeDocument
		if err := doc.DataTo(&d); err != nil {
			return err
		}
		fees = append(fees, d.schedule())
		return nil
	})
	return fees, err
}

func (d feeDocument) schedule() domain.FeeSchedule {
	s := domain.FeeSchedule{Operator: d.Operator, DebitFee: d.DebitFee, CreditFees: make(map[int]float64, len(d.CreditFees))}
	for k, v := range d.CreditFees {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			continue
		}
		s.CreditFees[n] = v
	}
	return s
}

func newFeeDocument(s domain.FeeSchedule) feeDocument {
	d := feeDocument{Operator: s.Operator, DebitFee: s.DebitFee, CreditFees: make(map[string]float64, len(s.CreditFees))}
	for n, v := range s.CreditFees {
		d.CreditFees[strconv.Itoa(n)] = v
	}
	return d
}

func (r *firestoreRepository) SavePackagingRules(ctx context.Context, rules []domain.PackagingRule) error {
	col := r.db.Collection(CollectionPackaging)
	return r.bulkSet(ctx, len(rules), func(i int) (*firestore.DocumentRef, any) {
		id := rules[i].ID
		if id == "" {
			id = docIDFor(rules[i].Name)
		}
		return col.Doc(id), rules[i]
	})
}

func (r *firestoreRepository) SaveFeeSchedules(ctx context.Context, fees []domain.FeeSchedule) error {
	col := r.db.Collection(CollectionFees)
	return r.bulkSet(ctx, len(fees), func(i int) (*firestore.DocumentRef, any) {
		return col.Doc(docIDFor(fees[i].Operator)), newFeeDocument(fees[i])
	})
}

func (r *firestoreRepository) Columns(ctx context.Context) ([]domain.ColumnMeta, error) {
	snap, err := r.db.Collection(CollectionColumns).Doc(columnsDocID).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar colunas: %w", err)
	}
	var d columnsDocument
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("erro ao ler colunas: %w", err)
	}
	return d.Items, nil
}

func (r *firestoreRepository) SaveColumns(ctx context.Context, cols []domain.ColumnMeta) error {
	if _, err := r.db.Collection(CollectionColumns).Doc(columnsDocID).Set(ctx, columnsDocument{Items: cols}); err != nil {
		return fmt.Errorf("erro ao salvar colunas: %w", err)
	}
	return nil
}

func (r *firestoreRepository) each(ctx context.Context, collection string, fn func(doc *firestore.DocumentSnapshot) error) error {
	iter := r.db.Collection(collection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("erro ao consultar %s: %w", collection, err)
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("erro ao ler %s/%s: %w", collection, doc.Ref.ID, err)
		}
	}
}

// fromFirestoreMap converte inteiros devolvidos pelo Firestore para float64, o tipo
// numérico usado pelo motor.
func fromFirestoreMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromFirestoreValue(v)
	}
	return out
}

func fromFirestoreValue(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case map[string]any:
		return fromFirestoreMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromFirestoreValue(e)
		}
		return out
	}
	return v
}
