package clashroyale

import (
	"regexp"
	"strings"
)

// TagPattern is the input hint advertised to action clients. ValidTag is
// looser since older accounts carry shorter tags.
const TagPattern = `^#?[0-9A-Z]{8,}$`

var tagRegexp = regexp.MustCompile(`^#?[0-9A-Z]+$`)

// FormatTag normalises a tag to the upper case '#'-prefixed form the API reports.
func FormatTag(tag string) string {
	formatted := strings.ToUpper(strings.TrimSpace(tag))
	if !strings.HasPrefix(formatted, "#") {
		formatted = "#" + formatted
	}
	return formatted
}

func ValidTag(tag string) bool {
	return tagRegexp.MatchString(strings.ToUpper(strings.TrimSpace(tag)))
}

func SameTag(a, b string) bool {
	return FormatTag(a) == FormatTag(b)
}

func encodeTag(tag string) string {
	return strings.Replace(FormatTag(tag), "#", "%23", 1)
}
