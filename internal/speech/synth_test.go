package speech

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSynthesizerSpeaks(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spoken.txt")
	script := writeScript(t, "say.sh", "#!/bin/sh\nprintf '%s' \"$2\" > \""+out+"\"\n")

	synth, err := NewCommandSynthesizer(script + " -q")
	require.NoError(t, err)
	defer synth.Close()

	select {
	case err := <-synth.Speak(context.Background(), "a fine morning"):
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("speak did not complete")
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a fine morning", string(data))
}

func TestCommandSynthesizerCloseKillsPlayback(t *testing.T) {
	script := writeScript(t, "slow.sh", "#!/bin/sh\nexec sleep 10\n")

	synth, err := NewCommandSynthesizer(script)
	require.NoError(t, err)

	done := synth.Speak(context.Background(), "long text")
	require.NoError(t, synth.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("playback survived Close")
	}

	assert.Error(t, <-synth.Speak(context.Background(), "after close"))
}

func TestCommandSynthesizerMissingCommand(t *testing.T) {
	_, err := NewCommandSynthesizer("definitely-not-a-real-tts-binary")
	assert.Error(t, err)

	_, err = NewCommandSynthesizer("  ")
	assert.Error(t, err)
}

func TestServicesSelectsAdapters(t *testing.T) {
	ctx := context.Background()

	svc := NewServices(Config{Recognizer: RecognizerText}, func(context.Context) (string, error) {
		return "laconic", nil
	}, nil)
	rec, err := svc.OpenRecognizer(ctx)
	require.NoError(t, err)
	got, err := rec.Listen(ctx)
	require.NoError(t, err)
	assert.Equal(t, "laconic", got)

	syn, err := svc.OpenSynthesizer(ctx)
	require.NoError(t, err)
	assert.IsType(t, SilentSynthesizer{}, syn)

	rec, err = NewServices(Config{Recognizer: RecognizerDeepgram}, nil, nil).OpenRecognizer(ctx)
	require.NoError(t, err)
	assert.IsType(t, &StreamRecognizer{}, rec)

	_, err = NewServices(Config{Recognizer: "whisper"}, nil, nil).OpenRecognizer(ctx)
	assert.Error(t, err)

	_, err = NewServices(Config{Recognizer: RecognizerText}, nil, nil).OpenRecognizer(ctx)
	assert.Error(t, err)
}
