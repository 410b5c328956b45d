// Package mappings holds the configuration and mapping definitions shipped
// with the binary.
package mappings

import "embed"

//go:embed defaults.yaml mappings/*.yaml
var Files embed.FS
