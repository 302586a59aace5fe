package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// cleanBackendJSON quita fences ```json ... ``` y BOM de una respuesta del
// backend generador, dejando el contenido usable.
func cleanBackendJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.TrimPrefix(s, "\ufeff")

	reStart := regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	reEnd := regexp.MustCompile("(?is)\\s*```\\s*$")
	s = reStart.ReplaceAllString(s, "")
	s = reEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractFirstJSONObject devuelve el primer objeto JSON balanceado del input,
// ignorando llaves dentro de strings.
func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}

	return ""
}

// decodeBackendJSON parsea la respuesta cruda del backend en la forma tipada
// esperada, tolerando fences markdown y texto alrededor del objeto JSON.
func decodeBackendJSON(raw []byte, v any) error {
	cleaned := cleanBackendJSON(string(raw))
	if cleaned == "" {
		return fmt.Errorf("empty backend response")
	}

	candidate := extractFirstJSONObject(cleaned)
	if candidate == "" {
		candidate = cleaned
	}

	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("parse backend response: %w", err)
	}
	return nil
}
