package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindIs(t *testing.T) {
	tests := []struct {
		kind   Kind
		target Kind
		want   bool
	}{
		{Launch, Launch, true},
		{Launch, Command, true},
		{Execution, Command, true},
		{Command, Execution, false},
		{Launch, Execution, false},
		{Transient, Command, false},
		{Unknown, Command, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.kind, tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Is(tt.target))
		})
	}
}

func TestMarkAndKindOf(t *testing.T) {
	base := errors.New("device offline")
	err := fmt.Errorf("probe: %w", Mark(base, Transient))

	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, Transient, k)
	assert.ErrorIs(t, err, base)
	assert.True(t, Matches(err, Transient))
	assert.False(t, Matches(err, Command))
}

func TestKindOfPlainError(t *testing.T) {
	k, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, Unknown, k)
	assert.Nil(t, Mark(nil, Launch))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "execution", Execution.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
