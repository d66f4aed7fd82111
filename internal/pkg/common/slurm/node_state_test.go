package slurm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateSet(t *testing.T) {
	tests := []struct {
		in     string
		tokens []string
	}{
		{"IDLE", []string{"IDLE"}},
		{"MIXED+RESERVED", []string{"MIXED", "RESERVED"}},
		{"mixed+drain+reserved", []string{"MIXED", "DRAIN", "RESERVED"}},
		{"IDLE*", []string{"IDLE", "NOT_RESPONDING"}},
		{"IDLE+CLOUD+POWERED_DOWN", []string{"IDLE", "POWERED_DOWN", "CLOUD"}},
		{"DOWN~", []string{"DOWN", "POWERED_DOWN"}},
		{"ALLOC", []string{"ALLOCATED"}},
		{"IDLE-", []string{"IDLE", "PLANNED"}},
		{"DRAINED", []string{"DRAIN"}},
		{"MIXED+SOMETHING_NEW", []string{"MIXED", "SOMETHING_NEW"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.tokens, ParseStateSet(tt.in).Tokens())
		})
	}
}

func TestStateSetMembership(t *testing.T) {
	set := NewStateSet("MIXED", "RESERVED")

	assert.True(t, set.Has(NODE_STATE_MIXED))
	assert.True(t, set.Has(NODE_STATE_MIXED|NODE_STATE_RES))
	assert.False(t, set.Has(NODE_STATE_MIXED|NODE_STATE_IDLE))
	assert.True(t, set.Any(NODE_STATE_IDLE|NODE_STATE_MIXED))
	assert.False(t, set.Any(NODE_STATE_PLANNED))
	assert.False(t, set.Has(0))
	assert.Equal(t, "MIXED+RESERVED", set.String())
	assert.Equal(t, NODE_STATE_MIXED|NODE_STATE_RES, set.Mask())
}

func TestStateSetEmpty(t *testing.T) {
	assert.True(t, NewStateSet().Empty())
	assert.True(t, ParseStateSet(" ").Empty())
	assert.False(t, NewStateSet("WHATEVER").Empty())
}

func TestStateSetSeverity(t *testing.T) {
	assert.Equal(t, SeverityNormal, ParseStateSet("IDLE").Severity())
	assert.Equal(t, SeverityNormal, ParseStateSet("MIXED").Severity())
	assert.Equal(t, SeverityWarning, ParseStateSet("MIXED+DRAIN").Severity())
	assert.Equal(t, SeverityWarning, ParseStateSet("IDLE+RESERVED").Severity())
	assert.Equal(t, SeverityCritical, ParseStateSet("DOWN+DRAIN").Severity())
	assert.Equal(t, SeverityCritical, ParseStateSet("IDLE*").Severity())
	assert.Equal(t, "critical", SeverityCritical.String())
}

func TestNodeStateString(t *testing.T) {
	assert.Equal(t, "IDLE", NODE_STATE_IDLE.String())
	assert.Equal(t, "IDLE+RESERVED", (NODE_STATE_IDLE | NODE_STATE_RES).String())
	assert.Equal(t, "?", NodeState(0).String())
}

func TestStateSetMarshalJSON(t *testing.T) {
	b, err := json.Marshal(ParseStateSet("MIXED+PLANNED"))
	require.NoError(t, err)
	assert.JSONEq(t, `["MIXED","PLANNED"]`, string(b))
}
