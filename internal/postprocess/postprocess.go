// Package postprocess strips model artifacts from a stage's output before it
// is stored or handed to the next stage.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes reasoning blocks, a leading "Here is the ..." preamble and,
// for single-line outputs, one pair of wrapping quotes. Everything else is
// returned as the model wrote it, apart from surrounding whitespace.
func Clean(text string) string {
	text = reasoningBlockRe.ReplaceAllString(text, "")
	text = openReasoningRe.ReplaceAllString(text, "")
	text = dropPreamble(strings.TrimSpace(text))
	if !strings.Contains(text, "\n") {
		text = unquote(text)
	}
	return strings.TrimSpace(text)
}

// RE2 has no backreferences, so each tag pair is listed.
var reasoningBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// openReasoningRe catches a reasoning tag that was never closed because the
// model ran out of tokens.
var openReasoningRe = regexp.MustCompile(`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`)

// preambleRe matches an introductory line such as "Sure, here is the refined
// translation:" or "Here's my evaluation:". A trailing colon is required.
var preambleRe = regexp.MustCompile(
	`(?i)^(?:(?:certainly|sure|of course|okay)[,.!]?\s+)?here(?:'s| is| are)\s+(?:the |my |your )?` +
		`(?:three |final |refined |polished |draft |translated )*` +
		`(?:translations?|variants?|evaluation|score|scores|result|text)\b[^:\n]{0,40}:[ \t]*\n?`,
)

func dropPreamble(text string) string {
	if loc := preambleRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:])
	}
	return text
}

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
}

func unquote(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	for _, p := range quotePairs {
		if runes[0] != p[0] || runes[n-1] != p[1] {
			continue
		}
		// "A" and "B" is two quoted phrases, not one wrapped line.
		inner := string(runes[1 : n-1])
		if strings.ContainsRune(inner, p[0]) || strings.ContainsRune(inner, p[1]) {
			return text
		}
		return strings.TrimSpace(inner)
	}
	return text
}
