package analysis

import (
	"strings"

	"ThreatScanner/internal/domain"
)

// Helpers turning a normalized map into typed result fields. Models are
// loose about types (single string where a list is expected, numbers as
// strings), so every accessor is defensive.

func fieldString(obj map[string]any, key string) string {
	value, ok := obj[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func fieldStringList(obj map[string]any, key string) []string {
	value, ok := obj[key]
	if !ok || value == nil {
		return nil
	}

	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	}
	return nil
}

func fieldIOCs(obj map[string]any) (domain.IOCSet, bool) {
	value, ok := obj["iocs"]
	if !ok || value == nil {
		return domain.IOCSet{}, false
	}
	inner, ok := value.(map[string]any)
	if !ok {
		return domain.IOCSet{}, false
	}

	return domain.IOCSet{
		IPs:     fieldStringList(inner, "ips"),
		Domains: fieldStringList(inner, "domains"),
		CVEs:    fieldStringList(inner, "cves"),
		Hashes:  fieldStringList(inner, "hashes"),
		URLs:    fieldStringList(inner, "urls"),
		Emails:  fieldStringList(inner, "emails"),
	}, true
}
