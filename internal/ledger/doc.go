// Package ledger holds the pure rules behind lesson packages: calendar windows,
// hour accounting, status derivation, overflow splits, the assignment guard and
// expiry extensions. Nothing here touches storage; the service layer loads a
// snapshot under a row lock, applies these rules and persists the result.
package ledger
