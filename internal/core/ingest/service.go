// package ingest/service.go
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat indica extensão ou conteúdo que não é planilha.
var ErrUnsupportedFormat = errors.New("formato de arquivo não suportado")

// maxHeaderSearch limita a busca pela linha de cabeçalho.
const maxHeaderSearch = 40

// maxParallelFiles limita quantos arquivos são lidos ao mesmo tempo.
const maxParallelFiles = 4

// File é um arquivo enviado: nome original e conteúdo.
type File struct {
	Name string
	Body io.Reader
}

// Service define a leitura de planilhas em linhas brutas.
type Service interface {
	Parse(ctx context.Context, files []File) ([]domain.RawRow, error)
}

type service struct {
	logger *zap.Logger
}

// NewService cria o leitor de planilhas.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{logger: logger}
}

// Parse lê os arquivos em paralelo e devolve as linhas na ordem dos arquivos e das abas.
func (svc *service) Parse(ctx context.Context, files []File) ([]domain.RawRow, error) {
	results := make([][]domain.RawRow, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := svc.parseFile(f)
			if err != nil {
				return fmt.Errorf("falha ao ler %s: %w", f.Name, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.RawRow
	for _, rows := range results {
		all = append(all, rows...)
	}
	return all, nil
}

func (svc *service) parseFile(f File) ([]domain.RawRow, error) {
	data, err := io.ReadAll(f.Body)
	if err != nil {
		return nil, err
	}

	var sheets [][][]string
	switch ext := strings.ToLower(filepath.Ext(f.Name)); ext {
	case ".xlsx", ".xlsm":
		sheets, err = loadXLSX(data)
	case ".xls":
		sheets, err = loadXLS(data)
	case ".csv", ".txt":
		var rows [][]string
		rows, err = loadCSV(data)
		sheets = [][][]string{rows}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	var out []domain.RawRow
	for i, sheet := range sheets {
		rows := sheetToRaw(sheet, f.Name)
		svc.logger.Debug("planilha lida",
			zap.String("arquivo", f.Name),
			zap.Int("aba", i),
			zap.Int("linhas", len(rows)),
		)
		out = append(out, rows...)
	}
	return out, nil
}

// loadXLSX lê todas as abas com valores crus, para que datas cheguem como número serial.
func loadXLSX(data []byte) ([][][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	var sheets [][][]string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		sheets = append(sheets, rows)
	}
	return sheets, nil
}

func loadXLS(data []byte) ([][][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		// talvez seja xlsx salvo com extensão .xls
		if _, errX := excelize.OpenReader(bytes.NewReader(data)); errX == nil {
			return loadXLSX(data)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var sheets [][][]string
	for _, sheet := range workbook.GetSheets() {
		var rows [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, rows)
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("o arquivo .xls não contém planilhas")
	}
	return sheets, nil
}

// loadCSV aceita UTF-8 ou ISO-8859-1 e separador ';' ou ','.
func loadCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) >= bytes.Count(line, []byte(",")) && bytes.Contains(line, []byte(";")) {
		return ';'
	}
	return ','
}

// findHeaderRow devolve a primeira linha, entre as primeiras 40, com ao menos dois
// rótulos reconhecidos; sem nenhuma, a primeira linha não vazia.
func findHeaderRow(rows [][]string) int {
	limit := maxHeaderSearch
	if len(rows) < limit {
		limit = len(rows)
	}
	first := -1
	for i := 0; i < limit; i++ {
		recognized := 0
		for _, cell := range rows[i] {
			if _, ok := normalize.CanonicalField(cell); ok && strings.TrimSpace(cell) != "" {
				recognized++
			}
		}
		if recognized >= 2 {
			return i
		}
		if first == -1 && !blankRow(rows[i]) {
			first = i
		}
	}
	if first == -1 {
		return 0
	}
	return first
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sheetToRaw converte as linhas abaixo do cabeçalho em RawRows; rótulos repetidos
// recebem sufixo numérico e linhas vazias são descartadas.
func sheetToRaw(rows [][]string, source string) []domain.RawRow {
	if len(rows) == 0 {
		return nil
	}
	headerIdx := findHeaderRow(rows)
	header := labelsOf(rows[headerIdx])

	var out []domain.RawRow
	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		cells := make(map[string]any, len(header))
		for i, label := range header {
			if i >= len(row) {
				break
			}
			cells[label] = row[i]
		}
		out = append(out, domain.RawRow{Source: source, Cells: cells})
	}
	return out
}

func labelsOf(header []string) []string {
	labels := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		label := strings.TrimSpace(h)
		if label == "" {
			label = "coluna " + strconv.Itoa(i+1)
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = label + " " + strconv.Itoa(n)
		}
		labels[i] = label
	}
	return labels
}
