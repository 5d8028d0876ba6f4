package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minutes/internal/generate"
	"minutes/internal/services"
)

type stubGenerator struct {
	prompts []generate.Prompt
	reply   func(generate.Prompt) (string, error)
}

func (s *stubGenerator) Generate(_ context.Context, p generate.Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.reply(p)
}

type stubExporter struct {
	document string
	title    string
}

func (s *stubExporter) Export(_ context.Context, document, title string) (string, error) {
	s.document, s.title = document, title
	return "file:///tmp/" + title + ".md", nil
}

func TestApplyInstructionReturnsGeneratorOutputVerbatim(t *testing.T) {
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) { return "  shorter doc\n", nil }}
	applier := NewApplier(gen, "en", nil)

	out, err := applier.ApplyInstruction(context.Background(), "shorten the summary", "long doc")
	require.NoError(t, err)
	assert.Equal(t, "  shorter doc\n", out)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0].User, "long doc")
	assert.Contains(t, gen.prompts[0].User, "shorten the summary")
}

func TestApplyInstructionWrapsGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) { return "", errors.New("quota exceeded") }}
	_, err := NewApplier(gen, "en", nil).ApplyInstruction(context.Background(), "fix", "doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrGeneration)
	assert.Contains(t, services.Details(err).Message, "quota exceeded")
}

func TestApplyInstructionRejectsEmptyInput(t *testing.T) {
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) { return "x", nil }}
	applier := NewApplier(gen, "en", nil)
	_, err := applier.ApplyInstruction(context.Background(), "  ", "doc")
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = applier.ApplyInstruction(context.Background(), "fix", "")
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Empty(t, gen.prompts)
}

func TestSessionEditThenUndoRestoresOriginal(t *testing.T) {
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) { return "short minutes", nil }}
	session := NewSession("original minutes", NewApplier(gen, "en", nil), nil)

	updated, err := session.Apply(context.Background(), "shorten the summary")
	require.NoError(t, err)
	assert.Equal(t, "short minutes", updated)
	entries, head := session.History()
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, head)
	assert.NotEqual(t, entries[0], session.Current())

	prev, err := session.Undo()
	require.NoError(t, err)
	assert.Equal(t, "original minutes", prev)
	assert.Equal(t, "original minutes", session.Current())

	_, err = session.Undo()
	assert.ErrorIs(t, err, services.ErrNoOp)
}

func TestSessionFailedApplyLeavesLedgerUntouched(t *testing.T) {
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) { return "", errors.New("boom") }}
	session := NewSession("doc", NewApplier(gen, "en", nil), nil)

	_, err := session.Apply(context.Background(), "rewrite")
	require.ErrorIs(t, err, services.ErrGeneration)
	entries, head := session.History()
	assert.Equal(t, []string{"doc"}, entries)
	assert.Equal(t, 0, head)
}

func TestSessionExportUsesHeadSnapshot(t *testing.T) {
	replies := []string{"v2", "v3"}
	gen := &stubGenerator{reply: func(generate.Prompt) (string, error) {
		next := replies[0]
		replies = replies[1:]
		return next, nil
	}}
	exp := &stubExporter{}
	session := NewSession("v1", NewApplier(gen, "en", nil), exp)
	_, err := session.Apply(context.Background(), "a")
	require.NoError(t, err)
	_, err = session.Apply(context.Background(), "b")
	require.NoError(t, err)
	_, err = session.Undo()
	require.NoError(t, err)

	url, err := session.Export(context.Background(), "weekly")
	require.NoError(t, err)
	assert.Equal(t, "v2", exp.document)
	assert.Equal(t, "weekly", exp.title)
	assert.Equal(t, "file:///tmp/weekly.md", url)
}

func TestSessionManualDraftCommit(t *testing.T) {
	session := NewSession("doc", nil, nil)
	draft := session.Draft()
	draft.Set("doc with fix")
	committed, err := draft.Commit()
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, "doc with fix", session.Current())
}

func TestSessionExportWithoutExporter(t *testing.T) {
	_, err := NewSession("doc", nil, nil).Export(context.Background(), "x")
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
