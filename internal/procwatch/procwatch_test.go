package procwatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunning(t *testing.T) {
	list := func(context.Context) ([]string, error) {
		return []string{"explorer.exe", "DeltaForceClient-Win64-Shipping.exe"}, nil
	}

	ok, err := NewWithLister("deltaforceclient-win64-shipping.exe", list).Running(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewWithLister("other.exe", list).Running(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunningEmptyName(t *testing.T) {
	ok, err := NewWithLister("", nil).Running(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunningListError(t *testing.T) {
	list := func(context.Context) ([]string, error) { return nil, errors.New("denied") }
	_, err := NewWithLister("game.exe", list).Running(context.Background())
	assert.ErrorContains(t, err, "list processes: denied")
}

func TestProcessTable(t *testing.T) {
	names, err := processNames(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, names)
}
