// Package preflight provides readiness checks for a project directory and
// the services scenesmith talks to.
//
// The doctor command runs RunAll and prints every result. Checks never
// mutate the project; the ledger check opens the database read-write
// because that is what every other command does.
package preflight
