package domain

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func row(cells ...string) string { return strings.Join(cells, ",") }

// threeDepthTable has Surface, Middle and Bottom blocks, each reporting
// Cs-134 and Cs-137 with their not-detected columns.
func threeDepthTable() []string {
	return []string{
		row("Seawater monitoring"),
		row("Station", "T-1"),
		row("Unit", "Bq/L"),
		row("Surface", "", "", "", "", "Middle", "", "", "", "", "Bottom", "", "", "", ""),
		row("", "Cs-134", "", "Cs-137", "", "", "Cs-134", "", "Cs-137", "", "", "Cs-134", "", "Cs-137", ""),
		row("Sampling", "Value", "ND", "Value", "ND", "Sampling", "Value", "ND", "Value", "ND", "Sampling", "Value", "ND", "Value", "ND"),
		row("2023/01/05", "0.5±0.1", "", "1.2", "", "2023/01/05", "", "0.31", "2.0", "", "", "", "", "", ""),
		row("2023/02/05", "-", "", "1.4", "", "", "", "", "", "", "", "", "", "", ""),
		"",
	}
}

func marshalString(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestSeawaterParser_ThreeDepths(t *testing.T) {
	blocks, err := NewSeawaterParser(discardLogger()).Parse("Seawater_10_1.csv", threeDepthTable())
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, "Surface", blocks[0].Depth)
	assert.Equal(t, "Middle", blocks[1].Depth)
	assert.Equal(t, "Bottom", blocks[2].Depth)

	t.Run("surface keeps collected columns only", func(t *testing.T) {
		require.Len(t, blocks[0].Data, 2)
		assert.Equal(t,
			`{"begperiod":"2023/01/05","Cs-134":0.5,"Cs-134_unc":0.1,"Cs-137":1.2}`,
			marshalString(t, blocks[0].Data[0]))
		assert.Equal(t,
			`{"begperiod":"2023/02/05","Cs-134":null,"Cs-134_unc":null,"Cs-137":1.4}`,
			marshalString(t, blocks[0].Data[1]))
	})

	t.Run("middle drops rows without begperiod", func(t *testing.T) {
		require.Len(t, blocks[1].Data, 1)
		assert.Equal(t,
			`{"begperiod":"2023/01/05","Cs-134_nd":0.31,"Cs-137":2}`,
			marshalString(t, blocks[1].Data[0]))
	})

	t.Run("bottom block is emitted empty", func(t *testing.T) {
		assert.NotNil(t, blocks[2].Data)
		assert.Empty(t, blocks[2].Data)
		assert.Equal(t, `{"depth":"Bottom","data":[]}`, marshalString(t, blocks[2]))
	})
}

func TestSeawaterParser_CRLFContent(t *testing.T) {
	content := "\ufeff" + strings.Join(threeDepthTable(), "\r\n")
	blocks, err := NewSeawaterParser(discardLogger()).Parse("Seawater_10_1.csv", SplitLines(content))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0].Data, 2)
	assert.Equal(t, "2023/02/05", blocks[0].Data[1].BegPeriod)
}

func TestSeawaterParser_TooFewLines(t *testing.T) {
	_, err := NewSeawaterParser(discardLogger()).Parse("short.csv", []string{"a", "b", "c", "d"})
	assert.ErrorIs(t, err, ErrSeawaterLayout)
}

func TestSeawaterParser_HeadersOnly(t *testing.T) {
	lines := threeDepthTable()[:5]
	blocks, err := NewSeawaterParser(discardLogger()).Parse("headers.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	for _, b := range blocks {
		assert.NotNil(t, b.Data)
		assert.Empty(t, b.Data)
	}
}

func TestSeawaterParser_DuplicateDepthLabel(t *testing.T) {
	var buf bytes.Buffer
	lines := []string{
		"", "", "",
		row("Surface", "", "", "", "", "Surface", "", "", "", ""),
		row("", "Cs-134", "", "Cs-137", "", "", "Cs-134", "", "Cs-137", ""),
		"",
		row("2023/01/05", "0.5", "", "1.2", "", "2023/01/05", "0.6", "", "1.3", ""),
	}

	blocks, err := NewSeawaterParser(bufferLogger(&buf)).Parse("dup.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Surface", blocks[0].Depth)
	assert.Empty(t, blocks[0].Data)
	assert.Contains(t, buf.String(), "nuclide header does not match depth block width")
}

func TestSeawaterParser_DepthOutsideNuclideHeader(t *testing.T) {
	var buf bytes.Buffer
	lines := []string{
		"", "", "",
		row("Surface", "", "", "", "", "Deep"),
		row("", "Cs-134", "", "Cs-137", ""),
		"",
		row("2023/01/05", "0.5", "", "1.2", "", "x"),
	}

	blocks, err := NewSeawaterParser(bufferLogger(&buf)).Parse("wide.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0].Data, 1)
	assert.Equal(t, "Deep", blocks[1].Depth)
	assert.Empty(t, blocks[1].Data)
	assert.Contains(t, buf.String(), "depth block outside nuclide header")
}

func TestSeawaterParser_UnknownNuclide(t *testing.T) {
	var buf bytes.Buffer
	lines := []string{
		"", "", "",
		row("Surface", "", "", "", ""),
		row("", "Sr-90", "", "H-3", ""),
		"",
		row("2023/01/05", "0.02", "", "3.1±0.2", ""),
	}

	blocks, err := NewSeawaterParser(bufferLogger(&buf)).Parse("sr.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Data, 1)
	assert.Equal(t, `{"begperiod":"2023/01/05","H-3":3.1,"H-3_unc":0.2}`, marshalString(t, blocks[0].Data[0]))
	assert.Contains(t, buf.String(), "ignoring unknown nuclide column")
	assert.Contains(t, buf.String(), "Sr-90")
}

func TestSeawaterParser_UnparsableCell(t *testing.T) {
	var buf bytes.Buffer
	lines := []string{
		"", "", "",
		row("Surface", "", ""),
		row("", "Cs-137", ""),
		"",
		row("2023/01/05", "<0.3", ""),
		row("2023/02/05", "0.4", ""),
	}

	blocks, err := NewSeawaterParser(bufferLogger(&buf)).Parse("bad.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks[0].Data, 2)
	assert.Equal(t, `{"begperiod":"2023/01/05","Cs-137":null}`, marshalString(t, blocks[0].Data[0]))
	assert.Contains(t, buf.String(), "unparsable seawater value")
	assert.Contains(t, buf.String(), "line=7")
}

func TestSeawaterParser_ShortRowsPadWithNull(t *testing.T) {
	lines := []string{
		"", "", "",
		row("Surface", "", "", "", ""),
		row("", "Cs-134", "", "Cs-137", ""),
		"",
		row("2023/01/05", "0.5"),
		row("2023/02/05", "0.6", "", "1.1", ""),
	}

	blocks, err := NewSeawaterParser(discardLogger()).Parse("short-rows.csv", lines)
	require.NoError(t, err)
	require.Len(t, blocks[0].Data, 2)
	assert.Equal(t, `{"begperiod":"2023/01/05","Cs-134":0.5,"Cs-137":null}`, marshalString(t, blocks[0].Data[0]))
}

func TestSeawaterMeasurement_UnmarshalKeepsPresence(t *testing.T) {
	in := `{"begperiod":"2023/01/05","Cs-137":null,"H-3":3,"H-3_nd_unc":0.5}`

	var m SeawaterMeasurement
	require.NoError(t, json.Unmarshal([]byte(in), &m))

	assert.True(t, m.Cs137.Value.Present)
	assert.Nil(t, m.Cs137.Value.Value)
	assert.False(t, m.Cs134.Value.Present)
	require.NotNil(t, m.H3.Value.Value)
	assert.Equal(t, 3.0, *m.H3.Value.Value)
	assert.Equal(t, in, marshalString(t, m))
}
