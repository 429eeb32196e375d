// Package domain defines core data models, errors and interfaces shared across the app.
// It contains plain types (identity/session/transaction state) and contracts only.
package domain
