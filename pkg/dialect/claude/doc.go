// Package claude converts between the Claude wire formats and the canonical
// dialect types.
//
// Two upstream request encodings exist for Claude deployments: the legacy
// messages shape (top-level system string, bare string content) and the
// modern converse shape (block content, camelCase parameters, usage in a
// metadata stream event). Which one a deployment takes is decided by the
// router's model-family classification; both encoders live here.
package claude
