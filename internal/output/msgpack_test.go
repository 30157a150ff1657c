package output

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMsgpackWriter(t *testing.T) {
	var buf bytes.Buffer
	drive(t, NewMsgpackWriter(&buf), sampleTrace())

	dec := msgpack.NewDecoder(&buf)
	var records []Record
	for {
		var r Record
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		records = append(records, r)
	}
	require.Len(t, records, 7)

	end := records[3]
	assert.Equal(t, "PinPPPs", end.Name)
	assert.Equal(t, "E", end.Phase)
	prepare, ok := end.Args["pin_ppps_prepare"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, prepare["total"])

	assert.Equal(t, "M", records[6].Phase)
}

func TestMsgpackWriter_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	drive(t, NewMsgpackWriter(&a), sampleTrace())
	drive(t, NewMsgpackWriter(&b), sampleTrace())

	assert.Equal(t, a.Bytes(), b.Bytes())
}
