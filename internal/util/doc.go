// Package util holds internal helpers shared by the tool and agent packages:
// reflection based JSON schema generation and schema validation.
package util
