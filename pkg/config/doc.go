// Package config loads versioned rulelimits configuration files.
//
// A [Loader] validates a document against its JSON schema, decodes it into
// the versioned type and fills in defaults. Errors are annotated with the
// offending YAML source.
package config
