package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	drive(t, NewNDJSONWriter(&buf), sampleTrace())

	var records []Record
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), sc.Text())
		records = append(records, r)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 7)

	assert.Equal(t, Record{Name: "GC", Phase: "B", ThreadID: 1, Timestamp: 1000}, records[0])
	assert.Equal(t, "PinPPPs", records[3].Name)
	assert.Equal(t, map[string]any{"young": 3.0, "old": 4.0, "total": 7.0}, records[3].Args["pin_ppps_prepare"])

	residual := records[6]
	assert.Equal(t, "run", residual.Name)
	assert.Equal(t, "M", residual.Phase)
	assert.Equal(t, int64(4000), residual.Timestamp)
	assert.Contains(t, residual.Args, "fstring")
}

func TestNDJSONWriter_NoResidual(t *testing.T) {
	var buf bytes.Buffer
	drive(t, NewNDJSONWriter(&buf), sampleTrace()[:5])

	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.NotContains(t, buf.String(), `"ph":"M"`)
}
