package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDocumentValue(t *testing.T) {
	v, err := JSONDocument(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONDocument{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONDocument(`{"version":2}`).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"version":2}`), v)
}

func TestJSONDocumentScan(t *testing.T) {
	var d JSONDocument
	require.NoError(t, d.Scan([]byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(d))

	require.NoError(t, d.Scan(`{"b":2}`))
	assert.JSONEq(t, `{"b":2}`, string(d))

	require.NoError(t, d.Scan(nil))
	assert.Nil(t, d)

	assert.Error(t, d.Scan(42))
}

func TestAuditLogJSONOmitsEmptyMetadata(t *testing.T) {
	out, err := json.Marshal(AuditLog{ID: "a-1", Metadata: JSONDocument(`{"x":true}`)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"metadata":{"x":true}`)

	out, err = json.Marshal(AuditLog{ID: "a-2"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "metadata")
}
