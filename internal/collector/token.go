package collector

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Login responses across upstream versions put the token in wildly different
// places. Extraction runs an ordered list of strategies: well-known field
// names (top level, then under data/Data), a depth-first search for any
// string field whose key mentions "token", and finally a regex over the raw
// body for responses that are not even valid JSON.

const minTokenLength = 11

var namedTokenFields = []string{"token", "access_token", "jwt", "id_token", "sessionToken"}

var rawTokenRe = regexp.MustCompile(`(?i)"(?:(?:access_)?token|jwt|idToken)"\s*:\s*"([^"]+)"`)

var tokenKeyRe = regexp.MustCompile(`(?i)token`)

// ExtractToken pulls a credential out of a login response body.
func ExtractToken(body []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			if token, ok := namedField(obj); ok {
				return token, true
			}
			if token, ok := deepSearch(obj); ok {
				return token, true
			}
		}
	}
	if match := rawTokenRe.FindSubmatch(body); match != nil {
		return string(match[1]), true
	}
	return "", false
}

func namedField(obj map[string]any) (string, bool) {
	for _, field := range namedTokenFields {
		if token, ok := stringValue(obj[field]); ok {
			return token, true
		}
	}
	for _, wrapper := range []string{"data", "Data"} {
		nested, ok := obj[wrapper].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range namedTokenFields {
			if token, ok := stringValue(nested[field]); ok {
				return token, true
			}
		}
		if token, ok := stringValue(nested["Token"]); ok {
			return token, true
		}
	}
	return "", false
}

// deepSearch walks objects in sorted key order so that a response with
// several token-ish fields always yields the same pick.
func deepSearch(node any) (string, bool) {
	switch node := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if token, ok := stringValue(node[key]); ok && tokenKeyRe.MatchString(key) {
				return token, true
			}
		}
		for _, key := range keys {
			if token, ok := deepSearch(node[key]); ok {
				return token, true
			}
		}
	case []any:
		for _, value := range node {
			if token, ok := deepSearch(value); ok {
				return token, true
			}
		}
	}
	return "", false
}

func stringValue(value any) (string, bool) {
	token, ok := value.(string)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if len(token) < minTokenLength {
		return "", false
	}
	return token, true
}
