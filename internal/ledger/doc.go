// Package ledger keeps the version history of a minutes document during an
// editing session.
package ledger
