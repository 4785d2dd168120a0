// Package translate maps requests, responses and model ids between the
// OpenAI, Anthropic and Gemini protocol surfaces and the internal
// generation API.
package translate

import (
	"regexp"
	"sort"
	"strings"
)

// claudeToGemini is the static alias table: well-known public model ids
// mapped to canonical upstream ids.
var claudeToGemini = map[string]string{
	// Claude family
	"claude-3-5-sonnet-20241022": "claude-sonnet-4-5",
	"claude-3-5-haiku-20241022":  "gemini-3-flash",
	"claude-3-7-sonnet-20250219": "claude-sonnet-4-5-thinking",
	"claude-sonnet-4-20250514":   "claude-sonnet-4-5",
	"claude-sonnet-4-5":          "claude-sonnet-4-5",
	"claude-sonnet-4-5-thinking": "claude-sonnet-4-5-thinking",
	"claude-opus-4-20250514":     "claude-opus-4-6-thinking",
	"claude-opus-4-1-20250805":   "claude-opus-4-6-thinking",
	"claude-opus-4-6-thinking":   "claude-opus-4-6-thinking",

	// OpenAI family
	"gpt-4":         "gemini-3-pro-high",
	"gpt-4-turbo":   "gemini-3-pro-low",
	"gpt-4o":        "gemini-3-flash",
	"gpt-4o-mini":   "gemini-3-flash",
	"gpt-3.5-turbo": "gemini-3-flash",
	"gpt-5":         "gemini-3-pro-high",
	"o1":            "gemini-3-pro-high",
	"o3":            "gemini-3-pro-high",

	// Gemini aliases
	"gemini-pro":       "gemini-3-pro-high",
	"gemini-1.5-pro":   "gemini-3-pro-high",
	"gemini-1.5-flash": "gemini-3-flash",
	"gemini-2.5-pro":   "gemini-3-pro-high",
	"gemini-2.5-flash": "gemini-2.5-flash",
}

// Family-group keys consulted in the configured family mappings.
const (
	FamilyGPT4      = "gpt-4-series"
	FamilyGPT4o     = "gpt-4o-series"
	FamilyGPT5      = "gpt-5-series"
	FamilyClaude45  = "claude-4.5-series"
	FamilyClaude35  = "claude-3.5-series"
	FamilyClaudeDef = "claude-default"
)

// imageSizes and imageRatios generate the dynamic image-variant model ids.
var (
	imageSizes  = []string{"", "-2k", "-4k"}
	imageRatios = []string{"", "-1x1", "-4x3", "-3x4", "-16x9", "-9x16", "-21x9"}
)

// ImageVariantModels returns every gemini-3-pro-image size/ratio variant.
func ImageVariantModels() []string {
	out := make([]string, 0, len(imageSizes)*len(imageRatios))
	for _, size := range imageSizes {
		for _, ratio := range imageRatios {
			out = append(out, "gemini-3-pro-image"+size+ratio)
		}
	}
	return out
}

// DynamicModels is the full advertised model set: base generation models,
// the image variants and a handful of extras.
func DynamicModels() []string {
	models := []string{
		"gemini-3-pro-high",
		"gemini-3-pro-low",
		"gemini-3-flash",
		"gemini-2.5-flash",
		"claude-sonnet-4-5",
		"claude-sonnet-4-5-thinking",
		"claude-opus-4-6-thinking",
	}
	models = append(models, ImageVariantModels()...)
	sort.Strings(models)
	return models
}

// NormalizeModel strips the optional "models/" prefix.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(model, "models/")
}

// matchWildcard evaluates map keys containing "*" as case-insensitive
// anchored patterns. Wildcard keys win over exact keys, in sorted key order
// for determinism.
func matchWildcard(model string, mapping map[string]string) (string, bool) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		if strings.Contains(k, "*") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		pattern := "(?i)^" + strings.ReplaceAll(regexp.QuoteMeta(k), `\*`, ".*") + "$"
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(model) {
			return mapping[k], true
		}
	}
	return "", false
}

func openaiFamilyKey(model string) string {
	m := strings.ToLower(model)
	blended := strings.Contains(m, "mini") || strings.Contains(m, "turbo") || strings.Contains(m, "4o")
	switch {
	case strings.Contains(m, "gpt-5"):
		return FamilyGPT5
	case blended || strings.Contains(m, "3.5"):
		return FamilyGPT4o
	case strings.HasPrefix(m, "gpt-4") || strings.HasPrefix(m, "o1-") || strings.HasPrefix(m, "o3-"):
		return FamilyGPT4
	default:
		return ""
	}
}

func claudeFamilyKey(model string) string {
	m := strings.ToLower(model)
	if !strings.Contains(m, "claude") {
		return ""
	}
	switch {
	case strings.Contains(m, "4.5") || strings.Contains(m, "4-5"):
		return FamilyClaude45
	case strings.Contains(m, "3.5") || strings.Contains(m, "3-5"):
		return FamilyClaude35
	default:
		return FamilyClaudeDef
	}
}

// ResolveModelRoute maps a requested model id to the upstream model id.
// Priority: custom mapping (wildcards before exact) > family-group mapping >
// static alias table > identity. The custom and family maps are kept
// separate so a family rule can never shadow a custom exact key.
func ResolveModelRoute(model string, custom, openaiFamily, anthropicFamily map[string]string) string {
	model = NormalizeModel(model)

	if mapped, ok := matchWildcard(model, custom); ok {
		return mapped
	}
	if mapped, ok := custom[model]; ok {
		return mapped
	}

	if key := openaiFamilyKey(model); key != "" {
		if mapped, ok := openaiFamily[key]; ok {
			return mapped
		}
		// GPT-5 falls back to the GPT-4 series rule.
		if key == FamilyGPT5 {
			if mapped, ok := openaiFamily[FamilyGPT4]; ok {
				return mapped
			}
		}
	}
	if key := claudeFamilyKey(model); key != "" {
		if mapped, ok := anthropicFamily[key]; ok {
			return mapped
		}
	}

	if mapped, ok := claudeToGemini[model]; ok {
		return mapped
	}
	return model
}
