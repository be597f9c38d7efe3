// Package ledger keeps a SQLite log of every phase transition attempt across
// projects. The project record's own history is the authoritative audit
// trail; the ledger adds a cross-project view for the history command.
package ledger
