// Package entitlement implements the license key engine at the heart of
// keygate: key issuance, device (HWID) binding, expiry evaluation, and the
// quota-limited HWID reset subsystem.
//
// # Data Model
//
// One UserRecord exists per external account ID. A record carries the issued
// key, the optionally bound HWID, and the creation/expiry instants in Unix
// seconds. A record is "active" while its expiry lies strictly in the future;
// activity is always derived, never stored.
//
// # Operations
//
// The Service interface exposes the full operation set:
//
//	- Register: issue (or re-issue time on) a key for an account
//	- Authenticate: validate a key + HWID pair, binding on first use
//	- LookupByAccount: administrative lookup keyed on the account ID
//	- ResetHWID: clear a device binding, quota-gated for self-service
//	- ExtendTime: additive administrative expiry extension
//	- ListAccountIDs, DeleteAccount: administrative inventory management
//
// # Concurrency
//
// All mutations run as atomic per-account read-modify-write transactions
// through the Store interface, so two requests racing to bind a HWID to the
// same unbound record resolve to exactly one winner. The reset quota uses an
// atomic increment-with-cap in the same durable store, which keeps the daily
// cap correct across process restarts and concurrent requests.
package entitlement
