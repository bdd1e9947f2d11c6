package proposals

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z]*)[ \t]*\r?\n?(.*?)```")

// FencedJSON returns the body of the first fenced block labeled json, falling
// back to the first unlabeled block.
func FencedJSON(text string) ([]byte, bool) {
	var unlabeled []byte
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		label := strings.ToLower(match[1])
		body := strings.TrimSpace(match[2])
		if body == "" {
			continue
		}
		if label == "json" {
			return []byte(body), true
		}
		if label == "" && unlabeled == nil {
			unlabeled = []byte(body)
		}
	}
	if unlabeled != nil {
		return unlabeled, true
	}
	return nil, false
}

// Extract pulls the proposal list out of a free-text model reply. The fenced
// block may hold a bare array or an object with a "proposals" array. The block
// is parsed once; any failure yields no proposals.
func Extract(text string) ([]json.RawMessage, bool) {
	block, ok := FencedJSON(text)
	if !ok {
		return nil, false
	}
	var payload struct {
		Proposals []json.RawMessage `json:"proposals"`
	}
	if bytes.HasPrefix(block, []byte("[")) {
		if err := json.Unmarshal(block, &payload.Proposals); err != nil {
			return nil, false
		}
	} else if err := json.Unmarshal(block, &payload); err != nil {
		return nil, false
	}
	if len(payload.Proposals) == 0 {
		return nil, false
	}
	return payload.Proposals, true
}

// StripFenced removes fenced blocks from a reply, leaving the prose around them.
func StripFenced(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}
