// Package core holds the viewer's state and the upload pipeline.
//
// It is independent of any transport. The web server, the CLI and the drop
// folder watcher all drive the same [Service].
//
// # Dataset contexts
//
// There are two kinds of dataset, main and history. Each kind has one
// current [DatasetContext]: the dataset, its facet index, and the user's
// search term and checkbox selection. Contexts are immutable values
// swapped atomically, so a reader always sees a consistent whole.
//
// # Uploads
//
// An upload replaces the dataset of one kind:
//
//  1. The file type is checked from the name, before a slot is taken
//  2. The file is parsed in full ([parse.Parse]); progress is broadcast
//     through [Service.SubscribeProgress]
//  3. The dataset is saved to the store
//  4. Only then is the new context published, with filters reset
//
// A newer upload of the same kind cancels the older one, and a
// completion that is no longer the newest is discarded as superseded.
// [Service.Clear] supersedes in-flight uploads the same way.
//
// Finished uploads (except superseded ones) and clears are recorded in an
// in-memory [AuditLog] read through [Service.GetAuditLog].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// The codes are listed in error_messages.go.
package core
