// Package diff implements a unified-diff patch engine: generation of diffs
// between two text documents, structural and security validation of diff
// payloads, and safe in-place application with automatic backup and rollback.
//
// The package operates purely on text lines and is unaware of any markup
// structure. It exposes primitives that can be embedded in repair pipelines,
// editors and testing utilities; the CLI under cmd/ is one such consumer.
package diff
