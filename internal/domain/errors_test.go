package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrappedErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("start: %w", Wrap(KindStoreWriteFailed, errors.New("disk full")))

	assert.ErrorIs(t, err, ErrStoreWriteFailed)
	assert.NotErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, KindStoreWriteFailed, KindOf(err))
	assert.Equal(t, "start: Could not save: disk full", err.Error())
}

func TestKindOfUntagged(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestBareSentinelMessage(t *testing.T) {
	assert.Equal(t, "Error: No Active Session", ErrNoActiveSession.Error())
	assert.Equal(t, "Unknown error", ErrorKind("bogus").Message())
}

func TestFromWireRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bare", ErrNoActiveSession},
		{"wrapped", Wrap(KindUnknownAction, errors.New(`"bogus"`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromWire(KindOf(tt.err), tt.err.Error())
			assert.ErrorIs(t, got, &Error{Kind: KindOf(tt.err)})
			assert.Equal(t, tt.err.Error(), got.Error())
		})
	}
}

func TestFromWireUntagged(t *testing.T) {
	err := FromWire("", "")
	require.Error(t, err)
	assert.Equal(t, "request failed", err.Error())

	err = FromWire("", "socket closed")
	assert.Equal(t, "socket closed", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(err))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("save_quote")
	require.NoError(t, err)
	mode, ok := a.Mode()
	assert.True(t, ok)
	assert.Equal(t, ModeSaveQuote, mode)

	_, ok = ActionStart.Mode()
	assert.False(t, ok)

	_, err = ParseAction("pause")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestModeValid(t *testing.T) {
	assert.True(t, ModeDefineWord.Valid())
	assert.False(t, Mode("dictate").Valid())
}
