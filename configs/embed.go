// Package configs provides embedded configuration templates.
//
// Templates are embedded at build time with go:embed so they ship in
// every distribution. `regsearch config init` writes the user template
// to ~/.config/regsearch/config.yaml; the project template documents
// the .regsearch.yaml format for per-deployment settings.
//
// Precedence is defined by internal/config.Load: defaults, then user
// config, then project config, then REGSEARCH_* environment variables.
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/regsearch/config.yaml with
// machine-level settings: embedding provider, Ollama host, reranking,
// and cache backend.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate documents the .regsearch.yaml format for
// deployment-level settings, chiefly the store list.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
