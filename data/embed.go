// Package data embeds the default story catalog shipped with the binary.
package data

import _ "embed"

// Catalog is the YAML catalog used when CATALOG_PATH is not set
//
//go:embed catalog.yaml
var Catalog []byte
