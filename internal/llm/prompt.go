package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/poisignal/internal/model"
)

const noSignalsText = "No external data signals found."

// ConfidenceLabels returns the high, medium and low labels the model is asked
// to use for the given language
func ConfidenceLabels(language string) (string, string, string) {
	if strings.EqualFold(language, "nl") {
		return "Hoog", "Middel", "Laag"
	}
	return "High", "Medium", "Low"
}

func languageName(language string) string {
	switch strings.ToLower(language) {
	case "nl":
		return "Dutch"
	case "fr":
		return "French"
	case "de":
		return "German"
	default:
		return "English"
	}
}

func labelChoice(language string) string {
	h, m, l := ConfidenceLabels(language)
	return h + " | " + m + " | " + l
}

func interestsText(poi model.Poi) string {
	if len(poi.Interests) == 0 {
		return "General"
	}
	return strings.Join(poi.Interests, ", ")
}

func cityOf(poi model.Poi, city string) string {
	if poi.City != "" {
		return poi.City
	}
	return city
}

// contextBlock renders the merged payload as the source context of a prompt
func contextBlock(payload model.MergedPayload, withLinks bool) string {
	if len(payload.DescriptionCandidates) == 0 && len(payload.Facts) == 0 {
		return noSignalsText
	}
	var b strings.Builder
	for i, c := range payload.DescriptionCandidates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source: %s, score %.2f] %s", c.Source, c.Score, c.Text)
	}
	if withLinks && payload.Website != "" {
		fmt.Fprintf(&b, "\n\nWebsite: %s", payload.Website)
	}
	if len(payload.Facts) > 0 {
		b.WriteString("\n\nFacts:")
		for _, f := range payload.Facts {
			b.WriteString("\n- " + f)
		}
	}
	if len(payload.Categories) > 0 {
		b.WriteString("\n\nVerified by: " + strings.Join(payload.Categories, ", "))
	}
	return b.String()
}

const strictRules = `### STRICT RULES
1. Make NO assumptions.
2. When information is not known with certainty, write "%s".
3. Only use the sources given in the context.
4. Avoid outdated information.
5. If sources contradict each other, say so explicitly.
`

func unknownWord(language string) string {
	if strings.EqualFold(language, "nl") {
		return "Onbekend"
	}
	return "Unknown"
}

// ShortPrompt asks for a 5-7 line description as {description, confidence}
func ShortPrompt(poi model.Poi, payload model.MergedPayload, city, language string) string {
	prompt := fmt.Sprintf(`You are a fast, efficient local guide.
Write one catchy, informative description of 5-7 lines for "%s" (%s).
Use this context where relevant:
%s

`, poi.Name, cityOf(poi, city), contextBlock(payload, false))

	prompt += fmt.Sprintf(strictRules, unknownWord(language))
	prompt += fmt.Sprintf(`6. Estimate your certainty (%s) but do NOT put it in the text itself.

### OUTPUT JSON
{
  "description": "5-7 lines of text",
  "confidence": "%s"
}

Language: %s. Focus on what it is and why it is interesting. No introduction or closing.
Answer ONLY with the JSON.`, labelChoice(language), labelChoice(language), languageName(language))
	return prompt
}

// FullPrompt asks for the standard and extended versions of the details
func FullPrompt(poi model.Poi, payload model.MergedPayload, short, city, language string) string {
	labels := labelChoice(language)
	prompt := fmt.Sprintf(`You are an experienced local guide. We already have a short description of "%s".
Now we want depth.

### CONTEXT
- POI: %s
- City: %s
- Interests: %s
- Language: %s
- Context data:
%s
- Earlier short description: "%s"

`, poi.Name, poi.Name, cityOf(poi, city), interestsText(poi), languageName(language),
		contextBlock(payload, true), short)

	prompt += fmt.Sprintf(strictRules, unknownWord(language))
	prompt += fmt.Sprintf(`6. The earlier short description is the validated basis. If it says "%s", do not invent history from memory unless the context data adds new facts.
7. Estimate the certainty (%s) of EVERY field and never put it inside the text fields.

### OUTPUT JSON (ONLY JSON, NO MARKDOWN)
{
  "standard_version": {
    "description": "10-15 lines, clear explanation for most visitors",
    "fun_fact": "one engaging fact or anecdote",
    "confidence": "%s"
  },
  "extended_version": {
    "full_description": "15-20 lines, in depth",
    "full_description_confidence": "%s",
    "why_this_matches_your_interests": ["3-5 reasons this matches %s"],
    "interests_confidence": "%s",
    "fun_facts": ["2-4 fun facts"],
    "fun_facts_confidence": "%s",
    "if_you_only_have_2_minutes": "what you really must see",
    "highlight_confidence": "%s",
    "visitor_tips": "practical information if relevant",
    "tips_confidence": "%s"
  }
}`, unknownWord(language), labels, labels, labels, interestsText(poi), labels, labels, labels, labels)
	return prompt
}

// ArrivalPrompt asks for two practical sentences on reaching the POI
func ArrivalPrompt(poi model.Poi, city, language string) string {
	c := cityOf(poi, city)
	return fmt.Sprintf(`You are a local guide in %s. The user starts the route at "%s".
Give SPECIFIC parking and travel instructions for THIS EXACT location.

RULES:
1. If "%s" is a specific place, give the parking or public transport options right next to it. Do not fall back to generic city centre advice.
2. Only if "%s" is just the city name, give a general suggestion for the centre.
3. Make no assumptions about parking rates or exact bus numbers. When parking data for this place is unknown, write "%s".

GOAL: 2 short, practical sentences in %s. Plain text, no JSON.`,
		c, poi.Name, poi.Name, poi.Name, parkingUnknown(language), languageName(language))
}

func parkingUnknown(language string) string {
	if strings.EqualFold(language, "nl") {
		return "Parkeergegevens onbekend"
	}
	return "Parking details unknown"
}

// maxWelcomePois bounds the POI names mentioned in a welcome prompt
const maxWelcomePois = 8

// WelcomePrompt asks for a 6-10 sentence introduction to a tour
func WelcomePrompt(pois []model.Poi, city, language string) string {
	names := make([]string, 0, maxWelcomePois)
	interests := "General"
	routeContext := "City walk"
	for i, p := range pois {
		if i == 0 {
			interests = interestsText(p)
			if p.RouteContext != "" {
				routeContext = p.RouteContext
			}
		}
		if len(names) < maxWelcomePois {
			names = append(names, p.Name)
		}
	}

	return fmt.Sprintf(`You are a friendly, enthusiastic digital city guide.
Write an introduction before the walk or bike tour begins.

### CONTEXT
- City: %s
- Interests: %s
- Selected points of interest along the route: %s
- Route theme: %s

### GOAL
One flowing text of 6 to 10 sentences in %s that welcomes the visitor to %s, teases what makes this tour special and refers naturally to their interests.
Do not list every point of interest and do not state features that are not in the input. When something is uncertain, leave it out.
Plain text, no JSON.`,
		city, interests, strings.Join(names, ", "), routeContext, languageName(language), city)
}
