package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type partialJob struct {
	Status   string   `json:"status"`
	Attempts int      `json:"attempts"`
	Errors   []string `json:"errors"`
	Key      *string  `json:"key"`
}

func TestMergeChangesKeepsUnknownFields(t *testing.T) {
	stored := []byte(`{"status":"submitted","attempts":1,"errors":null,"key":"a","owner":{"name":"x"},"priority":3}`)
	var doc partialJob
	require.NoError(t, json.Unmarshal(stored, &doc))
	before, err := json.Marshal(doc)
	require.NoError(t, err)

	doc.Status = "started"
	doc.Attempts++
	doc.Errors = append(doc.Errors, "first")
	doc.Key = nil
	after, err := json.Marshal(doc)
	require.NoError(t, err)

	merged, err := MergeChanges(stored, before, after)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(merged, &got))
	assert.Equal(t, map[string]interface{}{
		"status":   "started",
		"attempts": 2.0,
		"errors":   []interface{}{"first"},
		"owner":    map[string]interface{}{"name": "x"},
		"priority": 3.0,
	}, got)
}

func TestMergeChangesWithoutChanges(t *testing.T) {
	stored := []byte(`{"status":"started","extra":true}`)
	doc := []byte(`{"status":"started"}`)
	merged, err := MergeChanges(stored, doc, doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(stored), string(merged))
}
