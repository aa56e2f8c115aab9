package blog

import (
	"path"
	"strings"
)

// DefaultPageSize is the listing page size for most themes.
const DefaultPageSize = 12

var compactThemes = map[string]int{
	"elegant-editorial": 10,
	"lifestyle":         10,
}

var themeAliases = map[string][]string{
	"seo-optimized":     {"seo_optimized"},
	"tech-blog":         {"techblog"},
	"custom-layout":     {"custom_layout"},
	"elegant-editorial": {"eleganteditorial", "elegant_editorial"},
	"ecommerce":         {"e-commerce"},
	"html":              {"HTML"},
}

// ThemeKeyVariants lists the storage keys a theme may be published under.
// The order is stable and duplicates are removed.
func ThemeKeyVariants(key string) []string {
	lower := strings.ToLower(key)
	candidates := []string{
		lower,
		key,
		strings.ReplaceAll(lower, "-", "_"),
		strings.ReplaceAll(lower, "_", "-"),
	}
	candidates = append(candidates, themeAliases[lower]...)

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// PageSize returns the listing page size for a theme.
func PageSize(theme string) int {
	if n, ok := compactThemes[theme]; ok {
		return n
	}
	return DefaultPageSize
}

func themeObjectPath(prefix, key, name string) string {
	return path.Join(strings.Trim(prefix, "/"), key, name)
}
