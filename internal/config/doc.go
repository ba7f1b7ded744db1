// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the cylinderd configuration.
//
// Precedence is environment (CYLINDERD_*) over the YAML file over built-in
// defaults. The YAML file is parsed strictly; unknown keys fail the load.
package config
