// Package api is the HTTP client of the diagrams server used by the CLI.
//
// A Client keeps the current access token and sends it as
// "Authorization: Bearer <token>" on protected calls. Server error bodies
// ({"detail": "..."}) are returned as *Error; a 401 additionally matches
// ErrUnauthorized and transport failures match ErrUnavailable, so callers
// can use errors.Is.
package api
