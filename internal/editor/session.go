package editor

import (
	"context"

	"minutes/internal/ledger"
	"minutes/internal/services"
)

// InstructionApplier produces a new document from an instruction. *Applier
// satisfies it locally; the HTTP client satisfies it against a daemon.
type InstructionApplier interface {
	ApplyInstruction(ctx context.Context, instruction, current string) (string, error)
}

// DocumentExporter hands a snapshot to the export collaborator.
type DocumentExporter interface {
	Export(ctx context.Context, document, title string) (string, error)
}

// Session couples a version ledger with an applier and exporter for one
// editing session.
type Session struct {
	ledger   *ledger.Ledger
	applier  InstructionApplier
	exporter DocumentExporter
}

// NewSession seeds a ledger with the generated document.
func NewSession(document string, applier InstructionApplier, exporter DocumentExporter) *Session {
	return &Session{ledger: ledger.New(document), applier: applier, exporter: exporter}
}

// Apply runs the instruction against the head and commits the result. On
// failure the ledger is left untouched.
func (s *Session) Apply(ctx context.Context, instruction string) (string, error) {
	updated, err := s.applier.ApplyInstruction(ctx, instruction, s.ledger.Head())
	if err != nil {
		return "", err
	}
	if _, err := s.ledger.CommitEdit(updated); err != nil {
		return "", err
	}
	return updated, nil
}

// Undo rewinds one version; services.ErrNoOp at the first version.
func (s *Session) Undo() (string, error) {
	return s.ledger.Rewind()
}

func (s *Session) Current() string {
	return s.ledger.Head()
}

// Draft starts a manual edit against the current head.
func (s *Session) Draft() *ledger.Draft {
	return s.ledger.NewDraft()
}

// History returns every snapshot and the head index.
func (s *Session) History() ([]string, int) {
	return s.ledger.Entries(), s.ledger.HeadIndex()
}

// Export hands the head snapshot to the exporter and returns its URL.
func (s *Session) Export(ctx context.Context, title string) (string, error) {
	if s.exporter == nil {
		return "", services.Wrap(services.ErrConfiguration, "export", "export", "exporter not configured", nil)
	}
	return s.exporter.Export(ctx, s.ledger.Head(), title)
}
