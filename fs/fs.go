// Package appfs exposes files embedded into the binary.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
