package translate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModelRoutePriority(t *testing.T) {
	custom := map[string]string{
		"gpt-4":    "custom-exact",
		"claude-*": "custom-wildcard",
	}
	openaiFam := map[string]string{
		FamilyGPT4:  "family-gpt4",
		FamilyGPT4o: "family-gpt4o",
	}
	anthropicFam := map[string]string{
		FamilyClaude45: "family-claude45",
	}

	// Custom exact beats everything.
	require.Equal(t, "custom-exact", ResolveModelRoute("gpt-4", custom, openaiFam, anthropicFam))
	// Wildcards match case-insensitively and beat family rules.
	require.Equal(t, "custom-wildcard", ResolveModelRoute("Claude-Sonnet-4-5", custom, openaiFam, anthropicFam))
	// Family rule applies when no custom key matches.
	require.Equal(t, "family-gpt4", ResolveModelRoute("gpt-4-0613", custom, openaiFam, anthropicFam))
	require.Equal(t, "family-gpt4", ResolveModelRoute("o1-preview", custom, openaiFam, anthropicFam))
	// mini/turbo/4o route to the blended group, not the gpt-4 group.
	require.Equal(t, "family-gpt4o", ResolveModelRoute("gpt-4o-mini", custom, openaiFam, anthropicFam))
	require.Equal(t, "family-gpt4o", ResolveModelRoute("gpt-4-turbo", custom, openaiFam, anthropicFam))
}

func TestResolveModelRouteGPT5Fallback(t *testing.T) {
	openaiFam := map[string]string{FamilyGPT4: "family-gpt4"}
	require.Equal(t, "family-gpt4", ResolveModelRoute("gpt-5", nil, openaiFam, nil))

	openaiFam[FamilyGPT5] = "family-gpt5"
	require.Equal(t, "family-gpt5", ResolveModelRoute("gpt-5-mini", nil, openaiFam, nil))
}

func TestResolveModelRouteStaticAndIdentity(t *testing.T) {
	require.Equal(t, "gemini-3-flash", ResolveModelRoute("gpt-4o", nil, nil, nil))
	require.Equal(t, "claude-sonnet-4-5", ResolveModelRoute("claude-3-5-sonnet-20241022", nil, nil, nil))
	// Unknown ids pass through unchanged.
	require.Equal(t, "gemini-3-pro-high", ResolveModelRoute("gemini-3-pro-high", nil, nil, nil))
	// models/ prefix is stripped before matching.
	require.Equal(t, "gemini-3-pro-high", ResolveModelRoute("models/gemini-2.5-pro", nil, nil, nil))
}

func TestClaudeFamilyRouting(t *testing.T) {
	fam := map[string]string{
		FamilyClaude45:  "to-45",
		FamilyClaude35:  "to-35",
		FamilyClaudeDef: "to-default",
	}
	require.Equal(t, "to-45", ResolveModelRoute("claude-sonnet-4-5", nil, nil, fam))
	require.Equal(t, "to-35", ResolveModelRoute("claude-3-5-haiku-20241022", nil, nil, fam))
	require.Equal(t, "to-default", ResolveModelRoute("claude-2.1", nil, nil, fam))
}

func TestImageVariantModels(t *testing.T) {
	variants := ImageVariantModels()
	require.Len(t, variants, 21)
	require.Contains(t, variants, "gemini-3-pro-image")
	require.Contains(t, variants, "gemini-3-pro-image-2k-16x9")
	require.Contains(t, variants, "gemini-3-pro-image-4k-21x9")
}
