package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTokenResolver_PrimaryWins(t *testing.T) {
	users := &fakeTokenSource{name: "users", tokens: map[string]string{"g1": "tokenA"}}
	guardians := &fakeTokenSource{name: "guardians", tokens: map[string]string{"g1": "tokenB"}}
	r := NewTokenResolver(zap.NewNop(), users, guardians)

	token, source, ok := r.Resolve(context.Background(), "g1")

	assert.True(t, ok)
	assert.Equal(t, "tokenA", token)
	assert.Equal(t, "users", source)
	assert.Equal(t, 0, guardians.calls)
}

func TestTokenResolver_FallsBackToSecondary(t *testing.T) {
	users := &fakeTokenSource{name: "users"}
	guardians := &fakeTokenSource{name: "guardians", tokens: map[string]string{"g1": "tokenB"}}
	r := NewTokenResolver(zap.NewNop(), users, guardians)

	token, source, ok := r.Resolve(context.Background(), "g1")

	assert.True(t, ok)
	assert.Equal(t, "tokenB", token)
	assert.Equal(t, "guardians", source)
}

func TestTokenResolver_SourceErrorIsMiss(t *testing.T) {
	users := &fakeTokenSource{name: "users", err: errStore}
	guardians := &fakeTokenSource{name: "guardians", tokens: map[string]string{"g1": "tokenB"}}
	r := NewTokenResolver(zap.NewNop(), users, guardians)

	token, _, ok := r.Resolve(context.Background(), "g1")

	assert.True(t, ok)
	assert.Equal(t, "tokenB", token)
}

func TestTokenResolver_NotFound(t *testing.T) {
	r := NewTokenResolver(zap.NewNop(),
		&fakeTokenSource{name: "users"},
		&fakeTokenSource{name: "guardians", err: errStore},
	)

	token, source, ok := r.Resolve(context.Background(), "g1")

	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Empty(t, source)
}
