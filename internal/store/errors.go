package store

import "errors"

// ErrRevisionConflict is returned by compare-and-swap updates when the row
// was modified since the caller loaded it. Callers should reload the entity
// and decide whether their write still applies.
var ErrRevisionConflict = errors.New("revision conflict")

// ErrLeaseConflict is returned by job completion and failure writes when the
// lease token no longer matches, meaning the job was reclaimed and handed to
// another worker while this one was running.
var ErrLeaseConflict = errors.New("job lease conflict")
