package ledger

// Draft buffers manual edits to the ledger head. Nothing reaches the ledger
// until Commit, so keystroke-level changes never become entries.
type Draft struct {
	ledger *Ledger
	base   string
	text   string
}

// NewDraft starts a draft from the ledger's current head.
func (l *Ledger) NewDraft() *Draft {
	head := l.Head()
	return &Draft{ledger: l, base: head, text: head}
}

// Set replaces the buffered text.
func (d *Draft) Set(text string) {
	d.text = text
}

func (d *Draft) Text() string {
	return d.text
}

// Dirty reports whether the buffer differs from the snapshot it started from.
func (d *Draft) Dirty() bool {
	return d.text != d.base
}

// Commit appends the buffered text to the ledger when it changed. An unchanged
// draft commits nothing and reports false.
func (d *Draft) Commit() (bool, error) {
	if !d.Dirty() {
		return false, nil
	}
	if _, err := d.ledger.CommitEdit(d.text); err != nil {
		return false, err
	}
	d.base = d.text
	return true, nil
}

// Discard drops buffered changes and resyncs with the ledger head.
func (d *Draft) Discard() {
	d.base = d.ledger.Head()
	d.text = d.base
}
