package responder

import (
	"regexp"
	"strings"
)

var (
	fenceStart    = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*")
	fenceEnd      = regexp.MustCompile("(?s)\\s*```\\s*$")
	speakerPrefix = regexp.MustCompile(`(?i)^\s*(assistant|asistente|ai)\s*:\s*`)
)

// cleanReply quita BOM, fences de codigo, prefijos de rol y comillas envolventes del texto del modelo.
func cleanReply(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF"))
	if s == "" {
		return ""
	}
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	s = speakerPrefix.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
