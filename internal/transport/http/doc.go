// Package http contains the chi HTTP handlers for keygate's external
// surface: registration, authentication, account lookup, HWID reset, and
// the administrative endpoints (time extension, account inventory, export,
// deletion). Handlers translate between the wire shapes and the
// entitlement service, and map core errors onto the status taxonomy via
// internal/errors.
package http
