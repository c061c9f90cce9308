// Package sysapp classifies application names as OS infrastructure or
// user applications. System apps are exempt from focus-lock enforcement.
package sysapp

import "strings"

// exactNames are always classified as system apps, case-insensitively.
// Includes OS chrome and the focus-lock host itself.
var exactNames = map[string]struct{}{
	"finder":              {},
	"dock":                {},
	"systemuiserver":      {},
	"windowserver":        {},
	"loginwindow":         {},
	"control center":      {},
	"notification center": {},
	"notificationcenter":  {},
	"spotlight":           {},
	"siri":                {},
	"activity monitor":    {},
	"screen sharing":      {},
	"focuslock":           {},
	"sessiond":            {},
}

// patterns match shell/daemon/helper/framework naming conventions.
var patterns = []string{
	"helper",
	"agent",
	"daemon",
	"service",
	"server",
	"monitor",
	"updater",
	"plugin",
	"extension",
	"framework",
	"xpc",
	"com.apple",
	"renderer",
	"crashpad",
}

// IsSystemApp reports whether name looks like OS infrastructure rather
// than a user-facing application. Best-effort heuristic: false negatives
// get killed and relaunched, false positives survive a focus session, so
// the heuristic errs toward classifying as system.
func IsSystemApp(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}

	lower := strings.ToLower(trimmed)
	if _, ok := exactNames[lower]; ok {
		return true
	}

	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}

	// Short names are almost always CLI tools, not GUI apps.
	if len(trimmed) <= 3 {
		return true
	}

	// GUI applications carry capitalized display names; an all-lowercase
	// single token (zsh, pboard, mdworker) is a technical process.
	if trimmed == lower && !strings.ContainsAny(trimmed, " ") {
		return true
	}

	return false
}

// Filter returns names with system apps removed, preserving order and
// dropping duplicates.
func Filter(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" || IsSystemApp(trimmed) {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
