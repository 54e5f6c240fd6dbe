// Package cli provides the interactive diagrams command-line client.
//
// The REPL (App.Run) reads commands from stdin: register, login, me,
// logout, new, list, show, delete, share, export, shared, unregister.
// The access token obtained by login is kept in a file (see
// tokenstore) so the next run starts already signed in.
package cli
