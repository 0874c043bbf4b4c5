package prompt

import (
	"fmt"
	"strings"
)

// AnalysisParams describe a single hook/body pair to score.
type AnalysisParams struct {
	Hook       string
	Body       string
	Niche      string
	VideoStyle string
	Language   string
}

// BuildAnalysisPrompt renders the prompt for viral-potential analysis.
func BuildAnalysisPrompt(p AnalysisParams) string {
	lang := LanguageName(p.Language)

	var b strings.Builder
	b.WriteString("You are a viral content analyst and short-video algorithm expert.\n\n")
	b.WriteString("Analyze this content and predict its performance:\n\n")
	fmt.Fprintf(&b, "Hook: %q\n", p.Hook)
	fmt.Fprintf(&b, "Script: %q\n", p.Body)
	fmt.Fprintf(&b, "Niche: %s\n", p.Niche)
	fmt.Fprintf(&b, "Style: %s\n\n", p.VideoStyle)
	fmt.Fprintf(&b, "CRITICAL: Write every text field in %s.\n\n", lang)
	b.WriteString("Return the analysis as JSON (no markdown):\n\n")
	b.WriteString(`{
  "viralScore": 0-100,
  "engagement": {"likeRate": 2-8, "commentRate": 0.5-3, "shareRate": 0.2-2, "saveRate": 0.5-5},
  "viewPrediction": {"min": 1000-10000, "max": 10000-100000, "avgWatchTime": 30-80},
  "analysis": {
    "strengths": ["strength 1", "strength 2", "strength 3"],
    "weaknesses": ["weakness 1", "weakness 2"],
    "suggestions": ["actionable suggestion 1", "actionable suggestion 2"],
    "hookQuality": {"wordCount": 0, "powerWords": 0, "emotionTrigger": "curiosity/shock/humor/empathy/motivation", "patternMatch": "pattern name or 'none'"}
  }
}`)
	b.WriteString("\n\nCriteria:\n")
	b.WriteString("- Hook length (5-7 words is best)\n")
	b.WriteString("- Power words and psychological triggers (FOMO, curiosity, social proof)\n")
	b.WriteString("- Emotional targeting and viral formula match\n")
	b.WriteString("- Script quality and niche fit\n\n")
	b.WriteString("Be realistic. Return ONLY valid JSON.")
	return b.String()
}
