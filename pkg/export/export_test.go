package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementDataset() Dataset {
	return Dataset{
		Summary: []Field{{Label: "Package", Value: "pkg-1"}, {Label: "Remaining hours", Value: "2"}},
		Headers: []string{"Date", "Duration"},
		Rows: []map[string]string{
			{"Date": "2024-01-02", "Duration": "1.5"},
			{"Date": "2024-01-09", "Duration": "0.5"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(statementDataset())
	require.NoError(t, err)
	assert.Equal(t, "Package,pkg-1\nRemaining hours,2\n\nDate,Duration\n2024-01-02,1.5\n2024-01-09,0.5\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(statementDataset(), "Package statement")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
