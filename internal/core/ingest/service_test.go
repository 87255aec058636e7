package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

func xlsxFixture(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Relatório de vendas"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Código", "Cliente", "Valor Total", "Observação"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"1001", "Ana", 150.5, "entregar cedo"}))
	require.NoError(t, f.SetSheetRow(sheet, "A6", &[]any{"1002", "Bia", 80}))

	_, err := f.NewSheet("Itens")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Itens", "A1", &[]any{"Pedido", "Produto", "Qtd"}))
	require.NoError(t, f.SetSheetRow("Itens", "A2", &[]any{"1001", "Camisa", 2}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	svc := NewService(zap.NewNop())
	rows, err := svc.Parse(context.Background(), []File{{Name: "vendas.xlsx", Body: bytes.NewReader(xlsxFixture(t))}})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "vendas.xlsx", rows[0].Source)
	assert.Equal(t, "1001", rows[0].Cells["Código"])
	assert.Equal(t, "Ana", rows[0].Cells["Cliente"])
	assert.Equal(t, "150.5", rows[0].Cells["Valor Total"])
	assert.Equal(t, "entregar cedo", rows[0].Cells["Observação"])

	assert.Equal(t, "1002", rows[1].Cells["Código"], "blank rows are skipped")

	assert.Equal(t, "Camisa", rows[2].Cells["Produto"])
	assert.Equal(t, "2", rows[2].Cells["Qtd"])
}

func TestParseCSVLatin1Semicolon(t *testing.T) {
	content := "Código;Cliente;Cidade;Valor Total\n42;João;São Paulo;1.234,56\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)

	rows, err := NewService(nil).Parse(context.Background(), []File{{Name: "pedidos.csv", Body: strings.NewReader(encoded)}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "João", rows[0].Cells["Cliente"])
	assert.Equal(t, "São Paulo", rows[0].Cells["Cidade"])
	assert.Equal(t, "1.234,56", rows[0].Cells["Valor Total"])
}

func TestParseCSVCommaUTF8(t *testing.T) {
	content := "\xef\xbb\xbfPedido,Produto,Produto\n7,Meia,Meia azul\n"
	rows, err := NewService(nil).Parse(context.Background(), []File{{Name: "itens.CSV", Body: strings.NewReader(content)}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "7", rows[0].Cells["Pedido"])
	assert.Equal(t, "Meia", rows[0].Cells["Produto"])
	assert.Equal(t, "Meia azul", rows[0].Cells["Produto 2"])
}

func TestParseKeepsFileOrder(t *testing.T) {
	files := []File{
		{Name: "a.csv", Body: strings.NewReader("Pedido;Cliente\n1;A\n2;B\n")},
		{Name: "b.csv", Body: strings.NewReader("Pedido;Cliente\n3;C\n")},
		{Name: "c.csv", Body: strings.NewReader("Pedido;Cliente\n4;D\n")},
	}
	rows, err := NewService(nil).Parse(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var sources []string
	for _, r := range rows {
		sources = append(sources, r.Source)
	}
	assert.Equal(t, []string{"a.csv", "a.csv", "b.csv", "c.csv"}, sources)
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	_, err := NewService(nil).Parse(context.Background(), []File{{Name: "notas.pdf", Body: strings.NewReader("%PDF")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestParseRejectsCorruptWorkbook(t *testing.T) {
	_, err := NewService(nil).Parse(context.Background(), []File{{Name: "vendas.xlsx", Body: strings.NewReader("não é planilha")}})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestFindHeaderRow(t *testing.T) {
	rows := [][]string{
		{"Loja Exemplo LTDA"},
		{},
		{"Período: 01/01/2024 a 31/01/2024"},
		{"Data", "Pedido", "Cliente"},
		{"05/01/2024", "10", "Ana"},
	}
	assert.Equal(t, 3, findHeaderRow(rows))
	assert.Equal(t, 0, findHeaderRow([][]string{{"x", "y"}, {"1", "2"}}))
	assert.Equal(t, 1, findHeaderRow([][]string{{""}, {"x", "y"}}))
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n1;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("abc")))
}
