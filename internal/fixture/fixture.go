// Package fixture builds model responses for tests.
package fixture

import (
	"encoding/json"
	"fmt"
)

type script struct {
	Hook         string `json:"hook"`
	Body         string `json:"body"`
	CallToAction string `json:"callToAction"`
}

type caption struct {
	Timing string `json:"timing"`
	Text   string `json:"text"`
}

type result struct {
	Scripts      []script  `json:"scripts"`
	OnScreenText []caption `json:"onScreenText"`
	VisualPrompt string    `json:"visualPrompt"`
}

// Result returns a valid generation response with the given script and caption counts.
func Result(scripts, captions int) string {
	r := result{
		VisualPrompt: "Close-up of a runner lacing shoes at sunrise, warm light, handheld camera",
	}
	for i := 0; i < scripts; i++ {
		r.Scripts = append(r.Scripts, script{
			Hook:         fmt.Sprintf("Stop doing this mistake #%d", i+1),
			Body:         "Most people skip the warm-up and wonder why their knees hurt after every single run they do.",
			CallToAction: "Follow for part two",
		})
	}
	for i := 0; i < captions; i++ {
		r.OnScreenText = append(r.OnScreenText, caption{
			Timing: fmt.Sprintf("%d-%ds", i*3, i*3+3),
			Text:   fmt.Sprintf("Caption %d", i+1),
		})
	}

	data, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ValidResult returns a valid response with ten scripts and four captions.
func ValidResult() string {
	return Result(10, 4)
}

// Fenced wraps text in a markdown json fence.
func Fenced(text string) string {
	return "```json\n" + text + "\n```"
}

// Analysis returns a valid analysis response.
func Analysis() string {
	return `{
  "viralScore": 78,
  "engagement": {"likeRate": 8.5, "commentRate": 1.2, "shareRate": 2.1, "saveRate": 3.4},
  "viewPrediction": {"min": 10000, "max": 50000, "avgWatchTime": 12.5},
  "analysis": {
    "strengths": ["Strong curiosity gap"],
    "weaknesses": ["Long middle section"],
    "suggestions": ["Cut the second sentence"],
    "hookQuality": {"wordCount": 6, "powerWords": 2, "emotionTrigger": "fear", "patternMatch": "mistake"}
  }
}`
}
