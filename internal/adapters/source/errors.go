package source

import "errors"

// ErrSchema marks structurally broken input: a missing table, a missing
// required column or an unreadable file. It is always fatal.
var ErrSchema = errors.New("schema violation")
