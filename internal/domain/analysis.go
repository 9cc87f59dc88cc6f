package domain

import (
	"strings"
	"time"
)

// Category classifies a threat article into one of a closed set of values.
type Category string

const (
	CategoryMalware           Category = "malware"
	CategoryRansomware        Category = "ransomware"
	CategoryPhishing          Category = "phishing"
	CategoryAPT               Category = "apt"
	CategoryVulnerability     Category = "vulnerability"
	CategoryExploit           Category = "exploit"
	CategoryZeroDay           Category = "zero_day"
	CategoryDataBreach        Category = "data_breach"
	CategoryDDoS              Category = "ddos"
	CategorySupplyChain       Category = "supply_chain"
	CategoryInsiderThreat     Category = "insider_threat"
	CategorySocialEngineering Category = "social_engineering"
	CategoryBotnet            Category = "botnet"
	CategoryCryptojacking     Category = "cryptojacking"
	CategoryEspionage         Category = "espionage"
	CategoryHacktivism        Category = "hacktivism"
	CategoryOther             Category = "other"
)

var categories = map[Category]struct{}{
	CategoryMalware: {}, CategoryRansomware: {}, CategoryPhishing: {},
	CategoryAPT: {}, CategoryVulnerability: {}, CategoryExploit: {},
	CategoryZeroDay: {}, CategoryDataBreach: {}, CategoryDDoS: {},
	CategorySupplyChain: {}, CategoryInsiderThreat: {}, CategorySocialEngineering: {},
	CategoryBotnet: {}, CategoryCryptojacking: {}, CategoryEspionage: {},
	CategoryHacktivism: {}, CategoryOther: {},
}

// ParseCategory maps a free-form model answer onto the closed enum,
// falling back to CategoryOther for anything unrecognized.
func ParseCategory(value string) Category {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	normalized = Category(strings.ReplaceAll(string(normalized), " ", "_"))
	normalized = Category(strings.ReplaceAll(string(normalized), "-", "_"))
	if _, ok := categories[normalized]; ok {
		return normalized
	}
	return CategoryOther
}

// Severity is a five-level impact scale.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity maps a free-form model answer onto the severity scale,
// falling back to SeverityInfo.
func ParseSeverity(value string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// StrategyTag records which deployment strategy produced a result.
type StrategyTag string

const (
	StrategyBaseline StrategyTag = "baseline"
	StrategyTriModel StrategyTag = "trimodel"
	// StrategyNone marks the degraded placeholder persisted when no
	// analysis could be produced at all.
	StrategyNone StrategyTag = ""
)

// IOCSet holds the six typed indicator-of-compromise lists.
type IOCSet struct {
	IPs     []string `json:"ips"`
	Domains []string `json:"domains"`
	CVEs    []string `json:"cves"`
	Hashes  []string `json:"hashes"`
	URLs    []string `json:"urls"`
	Emails  []string `json:"emails"`
}

// Count returns the total number of indicators across all six lists.
func (s IOCSet) Count() int {
	return len(s.IPs) + len(s.Domains) + len(s.CVEs) + len(s.Hashes) + len(s.URLs) + len(s.Emails)
}

// AnalysisResult is the structured intelligence extracted from one article.
// Summary, Category, and Severity are required; a result missing any of them
// is invalid and must never leave the analysis engine.
type AnalysisResult struct {
	Summary      string      `json:"summary"`
	KeyPoints    []string    `json:"key_points"`
	Category     Category    `json:"category"`
	Severity     Severity    `json:"severity"`
	Sectors      []string    `json:"sectors"`
	ThreatActors []string    `json:"threat_actors"`
	IOCs         IOCSet      `json:"iocs"`
	Strategy     StrategyTag `json:"strategy"`
}

// Valid reports whether all required fields are populated.
func (r *AnalysisResult) Valid() bool {
	if r == nil {
		return false
	}
	return r.Summary != "" && r.Category != "" && r.Severity != ""
}

// FallbackResult is the degraded placeholder persisted when both the selected
// strategy and the baseline failed, so the article leaves the pending queue.
func FallbackResult() *AnalysisResult {
	return &AnalysisResult{
		Summary:  "analysis unavailable",
		Category: CategoryOther,
		Severity: SeverityInfo,
		Strategy: StrategyNone,
	}
}

// ArchivedArticle is the durable snapshot written to the archive store.
type ArchivedArticle struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	URL         string         `json:"url"`
	Source      string         `json:"source"`
	PublishedAt time.Time      `json:"published_at"`
	Analysis    AnalysisResult `json:"analysis"`
	ArchivedAt  time.Time      `json:"archived_at"`
	SizeBytes   int64          `json:"size_bytes"`
}
