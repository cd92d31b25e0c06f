package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renovateAi/internal/events"
	"renovateAi/internal/prompts"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	out, err := execute(t, "compile", "--room", "kitchen", "--style", "farmhouse",
		"--change", "replace cabinets", "--material", "white oak", "--variation", "1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, prompts.HeaderScene), out)
	assert.Contains(t, out, "replace cabinets")
	assert.Contains(t, out, "white oak")
	assert.Contains(t, out, prompts.HeaderVariation+" 1")
}

func TestCompileCommandWithAnalysis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"room_type":"bathroom","layout_type":"galley","structural_elements":["skylight"]}`), 0o600))

	out, err := execute(t, "compile", "--style", "coastal", "--analysis", path)
	require.NoError(t, err)
	assert.Contains(t, out, "skylight")

	out, err = execute(t, "compile", "--style", "coastal", "--analysis", path, "--quick")
	require.NoError(t, err)
	assert.NotContains(t, out, "skylight")
}

func TestCompileCommandRejectsNegativeVariation(t *testing.T) {
	_, err := execute(t, "compile", "--variation", "-1")
	assert.Error(t, err)
}

func TestPhotoCommandsNeedReadableFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.jpg")
	_, err := execute(t, "analyze", missing)
	assert.Error(t, err)

	_, err = execute(t, "generate", missing, "--out", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "generate")
	assert.Error(t, err)
}

func TestPrintProgress(t *testing.T) {
	ch := make(chan events.Event, 4)
	score := 0.42
	ch <- events.Event{Kind: events.KindBatchStarted}
	ch <- events.Event{Kind: events.KindAttemptFailed, VariationIndex: 0, Attempt: 1, Score: &score}
	ch <- events.Event{Kind: events.KindConceptFailed, VariationIndex: 2, Error: "quota"}
	ch <- events.Event{Kind: events.KindBatchCompleted, Concepts: 3}
	close(ch)

	var buf bytes.Buffer
	printProgress(&buf, ch)
	assert.Equal(t, "[batch_started]\n"+
		"[attempt_failed] variation 0 attempt 1 score 0.42\n"+
		"[concept_failed] variation 2: quota\n"+
		"[batch_completed] 3 concepts\n", buf.String())
}
