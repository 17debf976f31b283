package extensions

import _ "embed"

// CatalogSchema is the JSON Schema the catalog document must satisfy before
// strict decoding into ModuleSpec values.
//
//go:embed catalog.schema.json
var CatalogSchema []byte
