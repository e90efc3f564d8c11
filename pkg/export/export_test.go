package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Kode", "Mata Kuliah", "SKS"},
		Rows:    [][]string{{"IF101", "Algoritma, Dasar", "3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kode,Mata Kuliah,SKS\nIF101,\"Algoritma, Dasar\",3\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"1"}}})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{
		Title:  "Transkrip Nilai",
		Header: []Field{{Label: "NIM", Value: "2021001"}},
		Tables: []Table{{
			Caption: "2024/2025 Ganjil",
			Data:    Dataset{Headers: []string{"Kode", "Nilai"}, Rows: [][]string{{"IF101", "A"}}},
			Widths:  []float64{1, 1},
		}},
		Summary: []Field{{Label: "IPK", Value: "3.60"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresTable(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "empty"})
	assert.Error(t, err)
}

func TestColumnWidths(t *testing.T) {
	assert.Equal(t, []float64{95, 95}, columnWidths(2, nil))
	assert.Equal(t, []float64{47.5, 142.5}, columnWidths(2, []float64{1, 3}))
}
