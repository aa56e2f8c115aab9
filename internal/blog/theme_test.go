package blog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThemeKeyVariants(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"elegant-editorial", "Elegant-Editorial", "elegant_editorial", "eleganteditorial"},
		ThemeKeyVariants("Elegant-Editorial"))
	require.Equal(t, []string{"html", "HTML"}, ThemeKeyVariants("HTML"))
	require.Equal(t, []string{"minimal"}, ThemeKeyVariants("minimal"))
	require.Equal(t, []string{"seo_optimized", "seo-optimized"}, ThemeKeyVariants("seo_optimized"))
	require.Empty(t, ThemeKeyVariants(""))
}

func TestPageSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, PageSize("lifestyle"))
	require.Equal(t, 10, PageSize("elegant-editorial"))
	require.Equal(t, DefaultPageSize, PageSize("minimal"))
}

func TestThemeObjectPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "themes/minimal/post.html", themeObjectPath("/themes/", "minimal", "post.html"))
	require.Equal(t, "minimal/index.html", themeObjectPath("", "minimal", "index.html"))
}
