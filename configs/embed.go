// Package configs provides embedded configuration files for plantsearch.
//
// Files are embedded at build time so every distribution carries them:
//   - vocabulary.yaml: locale field names, derived attribute rules and the
//     index field mapping (loaded by internal/locale)
//   - project-config.example.yaml: template written by `plantsearch config init`
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/plantsearch/config.yaml)
//  3. Project config (.plantsearch.yaml)
//  4. .env file in the project directory
//  5. Environment variables (PLANTSEARCH_*)
package configs

import _ "embed"

// Vocabulary is the default locale vocabulary.
//
//go:embed vocabulary.yaml
var Vocabulary []byte

// ProjectConfigTemplate is written to .plantsearch.yaml by `plantsearch config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
