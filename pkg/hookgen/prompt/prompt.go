// Package prompt renders the instructions sent to the generative model.
// Every function here is pure: identical input always yields identical output.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultCaptions is the number of timed on-screen captions requested
	DefaultCaptions = 4

	// RepairPrefixLen bounds how much of a broken response is echoed back in a repair prompt
	RepairPrefixLen = 500
)

var wordRangePattern = regexp.MustCompile(`^\s*(\d+)\s*-\s*(\d+)\s*$`)

// Params are the generation parameters embedded in the user prompt.
type Params struct {
	Niche      string
	VideoStyle string
	Topic      string
	Tone       string
	Duration   string
	WordCount  string
	Language   string

	TargetAudience string
	PainPoint      string
	UniqueValue    string

	// Captions is the number of timed captions to request (default: 4)
	Captions int
}

const systemPrompt = `You are an elite short-form video strategist who has written hooks for accounts with hundreds of millions of views.

HOOK FORMULAS THAT WORK:
- "Stop scrolling if you [pain point]"
- "Nobody tells you [truth] about [topic]"
- "I tried [thing] so you don't have to"
- "This changed my [outcome] in [timeframe]"
- "[Bold claim], and I'll prove it"

POWER WORDS: secret, discovered, exposed, actually, nobody, transformed, hidden

RULES:
1. Every hook is under 7 words and contains no emojis
2. Scripts are detailed and story-driven, with specific examples
3. No cliches such as "you won't believe"
4. Conversational and fast-paced

PSYCHOLOGY: curiosity, FOMO, social proof, transformation stories`

// SystemPrompt returns the fixed system instruction for script generation.
func SystemPrompt() string {
	return systemPrompt
}

// TargetWordRange derives the spoken word range for a script.
// An explicit "N-M" word count wins; otherwise the duration bucket decides.
func TargetWordRange(duration, wordCount string) string {
	if m := wordRangePattern.FindStringSubmatch(wordCount); m != nil {
		return m[1] + "-" + m[2]
	}
	switch strings.TrimSpace(duration) {
	case "30":
		return "150-180"
	case "60":
		return "300-360"
	default:
		return "350-420"
	}
}

// LanguageName returns the upper-case language name used in instructions.
func LanguageName(code string) string {
	if strings.EqualFold(strings.TrimSpace(code), "tr") {
		return "TURKISH"
	}
	return "ENGLISH"
}

// BuildUserPrompt renders the user prompt for a generation request.
func BuildUserPrompt(p Params) string {
	duration := strings.TrimSpace(p.Duration)
	if duration == "" {
		duration = "60"
	}
	captions := p.Captions
	if captions <= 0 {
		captions = DefaultCaptions
	}
	words := TargetWordRange(duration, p.WordCount)
	lang := LanguageName(p.Language)

	var b strings.Builder
	fmt.Fprintf(&b, "CRITICAL: Generate ALL content in %s.\n\n", lang)

	fmt.Fprintf(&b, "Niche: %s | Style: %s | Topic: %s", p.Niche, p.VideoStyle, p.Topic)
	if p.Tone != "" {
		fmt.Fprintf(&b, " | Tone: %s", p.Tone)
	}
	fmt.Fprintf(&b, " | Length: %ss\n", duration)

	if p.TargetAudience != "" || p.PainPoint != "" || p.UniqueValue != "" {
		b.WriteString("\nTARGETING:\n")
		if p.TargetAudience != "" {
			fmt.Fprintf(&b, "- Audience: %s\n", p.TargetAudience)
		}
		if p.PainPoint != "" {
			fmt.Fprintf(&b, "- Pain point: %s\n", p.PainPoint)
		}
		if p.UniqueValue != "" {
			fmt.Fprintf(&b, "- Unique value: %s\n", p.UniqueValue)
		}
	}

	fmt.Fprintf(&b, "\nCRITICAL: Scripts must be long enough to fill %s seconds when spoken naturally.\n\n", duration)

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Create exactly 10 UNIQUE hooks (under 7 words each, no emojis)\n")
	fmt.Fprintf(&b, "2. Write a matching %ss script for each hook (~%s words)\n", duration, words)
	b.WriteString("3. Scripts MUST be detailed and story-driven:\n")
	b.WriteString("   - Include specific examples\n")
	b.WriteString("   - Add concrete numbers and details\n")
	b.WriteString("   - Tell mini-stories\n")
	b.WriteString("   - Keep it conversational and natural\n")
	fmt.Fprintf(&b, "4. Add exactly %d on-screen captions, each with an explicit timing label such as \"0-3s\"\n", captions)
	b.WriteString("5. Write a visual prompt for the background video\n\n")

	b.WriteString("RESPOND WITH VALID JSON ONLY. No markdown, no code fences, no commentary:\n\n")
	b.WriteString(jsonTemplate(duration, words, lang, captions))
	return b.String()
}

// jsonTemplate renders the literal response shape the model must emit.
func jsonTemplate(duration, words, lang string, captions int) string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString("  \"scripts\": [\n")
	b.WriteString("    {\n")
	b.WriteString("      \"hook\": \"Hook under 7 words\",\n")
	fmt.Fprintf(&b, "      \"body\": \"DETAILED %ss script (~%s words), conversational, story-driven and value-dense.\",\n", duration, words)
	b.WriteString("      \"callToAction\": \"Specific CTA\"\n")
	b.WriteString("    }\n")
	b.WriteString("  ],\n")
	b.WriteString("  \"onScreenText\": [\n")
	for i, timing := range captionTimings(duration, captions) {
		sep := ","
		if i == captions-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    {\"timing\": %q, \"text\": \"Caption %d\"}%s\n", timing, i+1, sep)
	}
	b.WriteString("  ],\n")
	fmt.Fprintf(&b, "  \"visualPrompt\": \"Background video description in %s\"\n", lang)
	b.WriteString("}")
	return b.String()
}

// captionTimings spreads caption labels over the video length.
// The first caption always covers the hook window "0-3s".
func captionTimings(duration string, n int) []string {
	total, _ := strconv.Atoi(duration)
	if total <= 3 {
		total = 60
	}

	timings := make([]string, 0, n)
	timings = append(timings, "0-3s")
	if n == 1 {
		return timings
	}

	step := (total - 3) / (n - 1)
	if step < 1 {
		step = 1
	}
	from := 3
	for i := 1; i < n; i++ {
		to := from + step
		if i == n-1 || to > total {
			to = total
		}
		timings = append(timings, fmt.Sprintf("%d-%ds", from, to))
		from = to
	}
	return timings
}

// BuildRepairPrompt asks the model to re-emit a malformed response as valid JSON.
// Only the first RepairPrefixLen characters of the broken text are included.
func BuildRepairPrompt(broken string) string {
	runes := []rune(broken)
	if len(runes) > RepairPrefixLen {
		runes = runes[:RepairPrefixLen]
	}
	return fmt.Sprintf("Fix this to valid JSON (no markdown):\n\n%s...\n\nReturn corrected JSON:", string(runes))
}
