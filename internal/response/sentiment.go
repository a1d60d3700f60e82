package response

import (
	"regexp"
	"strconv"
	"strings"
)

// NeutralSentiment is used when no valid sentiment tag is present.
const NeutralSentiment = 0.5

var sentimentTag = regexp.MustCompile(`\[SENTIMENT:\s*([\d.]+)\]`)

// ParseSentiment extracts the sentiment tag from generated text. When the tag is present and holds
// a number in [0,1], every tag is stripped and the score is returned with ok=true. Otherwise the
// text is returned unmodified with NeutralSentiment.
func ParseSentiment(text string) (clean string, score float64, ok bool) {
	m := sentimentTag.FindStringSubmatch(text)
	if m == nil {
		return text, NeutralSentiment, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 1 {
		return text, NeutralSentiment, false
	}
	return strings.TrimSpace(sentimentTag.ReplaceAllString(text, "")), v, true
}
