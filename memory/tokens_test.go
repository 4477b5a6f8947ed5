package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

func TestTokenEstimator_EmptyIsZero(t *testing.T) {
	est := memory.NewTokenEstimator()
	require.Zero(t, est.Estimate(""))
}

func TestTokenEstimator_Positive(t *testing.T) {
	est := memory.NewTokenEstimator()
	n := est.Estimate("I prefer window seats on long flights")
	require.Greater(t, n, 0)
}

func TestTokenEstimator_ScalesWithLength(t *testing.T) {
	est := memory.NewTokenEstimator()
	short := est.Estimate("hello")
	long := est.Estimate("hello there, this is a considerably longer piece of text " +
		"that should estimate to many more tokens than a single word")
	require.Greater(t, long, short)
}
