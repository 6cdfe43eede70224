/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

// Version is the current version of Aether Radio.
// Set at build time via ldflags:
//
//	-X github.com/openairworks/aether_radio/internal/version.Version=X.Y.Z
var Version = "0.3.0"
