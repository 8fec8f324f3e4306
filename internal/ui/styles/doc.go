// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the driveq terminal palette and the Theme built from
// it.
//
// Colors are lipgloss AdaptiveColors, so the same palette serves light and
// dark terminals. NewTheme picks the background from termenv unless the
// user forced a mode:
//
//	theme := styles.NewTheme(cfg.UI.Theme) // "auto", "dark" or "light"
//	fmt.Println(theme.UserLabel.Render("You"))
//
// Status helpers (RenderSuccess, RenderError, ...) prefix an ASCII indicator
// so outcomes stay readable without color.
package styles
