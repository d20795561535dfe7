package ports

import "github.com/bft-labs/lineship/pkg/log"

// Logger is the structured logging port. It aliases the public pkg/log
// interface so adapters written against either package interoperate.
type Logger = log.Logger

// Field is a structured logging field.
type Field = log.Field

// Field constructors re-exported for application-layer convenience.
var (
	String   = log.String
	Int      = log.Int
	Uint64   = log.Uint64
	Bool     = log.Bool
	Duration = log.Duration
	Bytes    = log.Bytes
	Err      = log.Err
	Any      = log.Any
)
