package openai

import (
	"fmt"
	"strings"
)

const imageAnalysisPrompt = `You are an art analyst describing NFT artwork for use as a trading card reference.
Describe the subject, pose, palette, mood, and notable visual details in two or
three concise paragraphs. Do not invent traits that are not visible or listed.`

const cardDetailsPrompt = `You design fantasy trading cards. Given an artwork analysis and a trait list,
respond with a single JSON object and nothing else, using exactly these keys:
  "name": short evocative card name in title case
  "rarity": one of "common", "uncommon", "rare", "epic", "legendary"
  "element": one of "fire", "water", "earth", "air", "light", "shadow", "neutral"
  "attack": integer 1-10
  "defense": integer 1-10
  "cost": integer 1-10
  "flavor_text": one sentence of flavor text
  "abilities": array of one or two objects with "name" and "description"
Scale rarity and stats with how distinctive the traits are.`

func analysisUserPrompt(traitSummary string) string {
	traitSummary = strings.TrimSpace(traitSummary)
	if traitSummary == "" {
		return "Analyze this artwork."
	}
	return fmt.Sprintf("Analyze this artwork. Known traits:\n%s", traitSummary)
}

func detailsUserPrompt(analysis, traitSummary string) string {
	var b strings.Builder
	b.WriteString("Artwork analysis:\n")
	b.WriteString(strings.TrimSpace(analysis))
	if traitSummary = strings.TrimSpace(traitSummary); traitSummary != "" {
		b.WriteString("\n\nTraits:\n")
		b.WriteString(traitSummary)
	}
	return b.String()
}
