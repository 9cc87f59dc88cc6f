package analysis

import "fmt"

const (
	// Fixed low sampling temperature for reproducible extraction.
	extractionTemperature = 0.1

	basicMaxTokens    = 800
	detailedMaxTokens = 1600
	baselineMaxTokens = 2000

	truncationMarker = "... [truncated]"
)

// chatMessage is one turn of a chat-style inference request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the payload for text-generation models.
type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// embeddingRequest is the payload for embedding models.
type embeddingRequest struct {
	Text string `json:"text"`
}

func newChatRequest(system, user string, maxTokens int) chatRequest {
	return chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: extractionTemperature,
		MaxTokens:   maxTokens,
	}
}

// TruncateBody bounds the article text sent to any model. Bodies longer
// than max characters are cut at max and suffixed with a marker.
func TruncateBody(body string, max int) string {
	if max <= 0 || len(body) <= max {
		return body
	}
	return body[:max] + truncationMarker
}

const basicSystemPrompt = `You are a cyber threat intelligence analyst. ` +
	`Respond with a single JSON object and nothing else.`

func basicUserPrompt(title, body string) string {
	return fmt.Sprintf(`Analyze this security news article and return JSON with:
- "summary": one sentence summary
- "category": one of malware, ransomware, phishing, apt, vulnerability, exploit, zero_day, data_breach, ddos, supply_chain, insider_threat, social_engineering, botnet, cryptojacking, espionage, hacktivism, other
- "severity": one of critical, high, medium, low, info
- "sectors": affected industry sectors
- "threat_actors": named threat actors or groups

Title: %s

%s`, title, body)
}

const detailedSystemPrompt = `You are a cyber threat intelligence analyst ` +
	`specialized in indicator extraction. Respond with a single JSON object and nothing else.`

func detailedUserPrompt(title, body string) string {
	return fmt.Sprintf(`Extract from this security news article and return JSON with:
- "key_points": 3 to 5 key takeaways
- "iocs": object with lists "ips", "domains", "cves", "hashes", "urls", "emails" (empty lists when none found)

Title: %s

%s`, title, body)
}

const baselineSystemPrompt = `You are a cyber threat intelligence analyst. ` +
	`Respond with a single JSON object and nothing else.`

func baselineUserPrompt(title, body string) string {
	return fmt.Sprintf(`Analyze this security news article and return JSON with:
- "summary": one sentence summary
- "key_points": 3 to 5 key takeaways
- "category": one of malware, ransomware, phishing, apt, vulnerability, exploit, zero_day, data_breach, ddos, supply_chain, insider_threat, social_engineering, botnet, cryptojacking, espionage, hacktivism, other
- "severity": one of critical, high, medium, low, info
- "sectors": affected industry sectors
- "threat_actors": named threat actors or groups
- "iocs": object with lists "ips", "domains", "cves", "hashes", "urls", "emails"

Title: %s

%s`, title, body)
}
