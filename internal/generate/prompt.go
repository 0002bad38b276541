package generate

import (
	"fmt"
	"strings"

	"github.com/hpungsan/hookah/internal/hookah"
)

const responseFormat = `{
  "suggestions": [
    {
      "name": "Creative mix name",
      "ingredients": ["flavor1", "flavor2", "flavor3"],
      "reasoning": "2-3 sentences explaining why this mix matches their preferences"
    }
  ],
  "analysis": "2-3 sentences providing an overall analysis of the user's preferences and flavor personality"
}`

// BuildPrompt renders the generation instruction for p.
// Only populated fields are included.
func BuildPrompt(p hookah.NormalizedPreferences) string {
	var b strings.Builder

	b.WriteString("You are an expert hookah (shisha) flavor consultant. ")
	b.WriteString("Generate exactly 3 unique and creative hookah flavor mix recommendations based on the following preferences:\n\n")

	if len(p.Tastes) > 0 {
		fmt.Fprintf(&b, "Flavor Preferences: %s\n", strings.Join(p.Tastes, ", "))
	}
	if p.ZodiacSign != "" {
		fmt.Fprintf(&b, "Zodiac Sign: %s (consider personality traits associated with this sign)\n", p.ZodiacSign)
	}
	if len(p.Moods) > 0 {
		fmt.Fprintf(&b, "Current Mood/Vibe: %s\n", strings.Join(p.Moods, ", "))
	}
	if p.Intensity != "" {
		fmt.Fprintf(&b, "Preferred Intensity: %s\n", p.Intensity)
	}
	if p.Occasion != "" {
		fmt.Fprintf(&b, "Occasion: %s\n", p.Occasion)
	}

	b.WriteString("\nRespond ONLY with valid JSON in the following format, with no markdown or extra text:\n")
	b.WriteString(responseFormat)
	b.WriteString("\n\nMake the recommendations creative, personalized and well-reasoned. ")
	b.WriteString("Consider how different flavors complement each other. Each mix must have 2-4 ingredients.")

	return b.String()
}
