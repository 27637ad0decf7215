package providers

import "strings"

// ProviderRef is one entry of a provider list such as "openai:work|ollama:nomic-embed-text|mock".
// KeyAlias selects the API key env suffix for hosted providers and the model for ollama.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

func (r ProviderRef) String() string {
	if r.KeyAlias == "" {
		return r.Name
	}
	return r.Name + ":" + r.KeyAlias
}

// ParseProviderList keeps list order, lowercases names and drops repeated entries.
// An empty list falls back to the mock provider.
func ParseProviderList(raw string) []ProviderRef {
	seen := map[string]bool{}
	var out []ProviderRef
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, alias, _ := strings.Cut(p, ":")
		ref := ProviderRef{Raw: p, Name: strings.ToLower(strings.TrimSpace(name)), KeyAlias: strings.TrimSpace(alias)}
		if seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
