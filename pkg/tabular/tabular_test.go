package tabular

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	return &Table{
		Sheet:   "Stock",
		Headers: []string{"Reference", "Size", "Quantity"},
		Rows: [][]string{
			{"YZ-100", "40", "12"},
			{"YZ-100", "41", "0"},
		},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	assert.True(t, strings.HasPrefix(buf.String(), "Reference,Size,Quantity\n"))

	got, err := Read(&buf, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"reference", "size", "quantity"}, got.Headers)
	assert.Len(t, got.Rows, 2)
	assert.Equal(t, 2, got.Column("Quantity"))
	assert.Equal(t, -1, got.Column("barcode"))
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample()))

	got, err := Read(&buf, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []string{"reference", "size", "quantity"}, got.Headers)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"YZ-100", "41", "0"}, got.Rows[1])
}

func TestRead_SkipsBOMAndBlankTail(t *testing.T) {
	in := "\xef\xbb\xbfRef,Qty\nA,1\n,\n"
	got, err := Read(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"ref", "qty"}, got.Headers)
	assert.Len(t, got.Rows, 1)
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""), FormatCSV)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	assert.Equal(t, FormatXLSX, FormatFromFilename("orders.XLSX"))
	assert.Equal(t, FormatCSV, FormatFromFilename("orders.csv"))
}

func TestServe(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Serve(rec, "stock", FormatCSV, sample()))
	assert.Equal(t, "attachment; filename=stock.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "YZ-100,40,12")
}
