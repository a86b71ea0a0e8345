package llm

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

const (
	DefaultLanguage = "zh"
	unknown         = "unknown"
)

const systemPrompt = "You are a travel planning assistant. Create practical, family-friendly itineraries " +
	"with transport, lodging, attractions, food, and estimated costs. Return concise JSON."

const outputSchema = `Return a single JSON object with exactly these keys:
- itineraryByDay: array of days; each day is {"title": string, "date": string, "activities": [{"time": string, "title": string, "desc": string, "costCNY": number}], "mapPOIs": [{"name": string, "lat": number, "lng": number}]}
- transport: array of plain strings
- lodging: array of plain strings
- restaurants: array of plain strings
- tips: array of plain strings
- totalEstimatedCost: number
- budgetBreakdown: array of {"category": string, "amount": number}
transport, lodging, restaurants and tips must be arrays of plain strings, never objects.
Costs in CNY with reasonable estimates.`

// BuildMessages renders the system and user messages for a trip request.
func BuildMessages(req types.TripRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Destination: %s\n", req.Destination)
	fmt.Fprintf(&b, "Origin: %s\n", orUnknown(req.Origin))
	fmt.Fprintf(&b, "Start date: %s\n", orUnknown(req.StartDate))
	fmt.Fprintf(&b, "Duration days: %s\n", intOrUnknown(req.Days))
	fmt.Fprintf(&b, "Budget: %s\n", floatOrUnknown(req.Budget))
	fmt.Fprintf(&b, "Travelers: %s\n", intOrUnknown(req.Travelers))
	fmt.Fprintf(&b, "Preferences: %s\n", preferencesLine(req.Preferences))
	fmt.Fprintf(&b, "With children: %s\n", yesNo(req.WithChildren))
	fmt.Fprintf(&b, "Language: %s\n\n", LanguageLine(req.Language))
	b.WriteString(outputSchema)
	return systemPrompt, b.String()
}

// LanguageLine renders a BCP-47 tag with its English name, e.g. "ja (Japanese)".
// Empty or malformed tags fall back to Chinese.
func LanguageLine(tag string) string {
	parsed, err := language.Parse(strings.TrimSpace(tag))
	if err != nil || parsed == language.Und {
		parsed = language.Chinese
	}
	name := display.English.Tags().Name(parsed)
	if name == "" {
		return parsed.String()
	}
	return fmt.Sprintf("%s (%s)", parsed.String(), name)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}

func intOrUnknown(v *int) string {
	if v == nil {
		return unknown
	}
	return strconv.Itoa(*v)
}

func floatOrUnknown(v *float64) string {
	if v == nil {
		return unknown
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func preferencesLine(p types.Preferences) string {
	if len(p) == 0 {
		return "none"
	}
	return strings.Join(p, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
