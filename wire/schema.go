package wire

import "embed"

// SchemaFS holds the JSON Schemas describing the protocol, one file per
// documented message shape.
//
//go:embed schema/*.json
var SchemaFS embed.FS
