// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads driveq's settings.
//
// # Key Types
//
//   - Config: every setting, grouped by component
//   - APIConfig: backend URL and request timeout
//   - ChatConfig: session id, document retrieval, streaming
//   - UploadConfig: local size ceiling and accepted types
//
// # Configuration Precedence
//
// Highest wins:
//   - Command-line flags (applied by the CLI)
//   - Environment variables (DRIVEQ_*), including ones set by a .env file
//   - ~/.driveq/config.toml, config.yaml or config.json (first found)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.NewClient(cfg.API.BaseURL).WithTimeout(cfg.Timeout())
package config
