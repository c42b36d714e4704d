package fetch

import "regexp"

// challengePatterns flag response bodies that are anti-bot challenges
// rather than product pages. Some mitigation layers serve these with
// HTTP 200, so status alone is not enough.
var challengePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)access denied`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)verify you are human`),
	regexp.MustCompile(`(?i)captcha`),
	regexp.MustCompile(`(?i)bot detected`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`(?i)ddos protection`),
	regexp.MustCompile(`(?i)security check`),
}

// Blocked reports whether a body looks like a bot wall.
func Blocked(body []byte) bool {
	for _, pattern := range challengePatterns {
		if pattern.Match(body) {
			return true
		}
	}
	return false
}
