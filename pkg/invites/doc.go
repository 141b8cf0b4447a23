// Package invites manages organization invites and the dual-write that
// applies an accepted invite's grants to both permission models.
//
// Acceptance writes the modern org/site membership rows and mirrors
// them into the legacy role tables, so policy checks keep working no
// matter which model a caller reads. Mirror writes are insert-if-absent
// and membership upserts never downgrade an existing higher role, which
// makes acceptance safe to reconcile repeatedly.
package invites
