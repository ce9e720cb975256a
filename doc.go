// Package accounts provides account credential and session lifecycle
// management (registration, email verification, password login, bearer
// token refresh) backed by Bun repositories.
//
// Credential lifecycle:
//   - Accounts register unverified and hold a single possession token slot
//     shared by email verification and password reset flows. Issuing either
//     token overwrites the slot, so only the most recently mailed link works.
//   - StateMachine centralizes the verification, session, and reset
//     transitions over in-memory Account records. It never touches storage;
//     Service wraps each transition in a repository transaction.
//
// Tokens:
//   - Possession tokens are opaque UUIDs mailed to the account owner and
//     stored in plaintext next to their expiry instant.
//   - Bearer tokens are HMAC-signed JWTs. Access and refresh tokens use
//     separate signing keys, and only a SHA-256 digest of the refresh token
//     is persisted. Refresh does not rotate the stored session.
//
// Notifications:
//   - Mailer renders verification and reset links through django templates
//     and hands the body to a pluggable Sender. Dispatch runs after the
//     account write commits and failures degrade to a warning, never an
//     error.
package accounts
