package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateUnverified, stateOf(false, false))
	assert.Equal(t, StatePending, stateOf(true, false))
	assert.Equal(t, StateVerified, stateOf(false, true))
	assert.Equal(t, StateVerifiedPending, stateOf(true, true))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{StateUnverified, StatePending, true},
		{StateUnverified, StateVerified, false},
		{StateUnverified, StateUnverified, false},

		{StatePending, StatePending, true},   // повторный старт
		{StatePending, StateVerified, true},  // успешная проверка
		{StatePending, StateUnverified, true}, // отмена
		{StatePending, StateVerifiedPending, false},

		{StateVerified, StateVerifiedPending, true}, // перепривязка
		{StateVerified, StateVerified, false},       // уже привязан
		{StateVerified, StatePending, false},
		{StateVerified, StateUnverified, false}, // unlink не предусмотрен

		{StateVerifiedPending, StateVerifiedPending, true}, // повторный reverify
		{StateVerifiedPending, StateVerified, true},        // подтверждение или отмена
		{StateVerifiedPending, StateUnverified, false},
		{StateVerifiedPending, StatePending, false},

		{"bogus", StatePending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
