// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package langchain

import "strings"

// cleanJSON extracts the JSON payload from a model response and repairs the
// mistakes small models commonly make.
func cleanJSON(s string) string {
	s = stripCodeFence(s)
	s = outermostObject(s)
	s = dropTrailingCommas(s)
	return repairKeyQuotes(s)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// outermostObject drops any preamble or epilogue around the first {...} span.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// dropTrailingCommas removes commas directly before a closing brace or bracket,
// leaving string contents alone.
func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// repairKeyQuotes adds the opening quote to keys emitted as `, key":`.
func repairKeyQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	i := 0
	for i < len(s) {
		ch := s[i]
		b.WriteByte(ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}
		for i < len(s) && isSpace(s[i]) {
			b.WriteByte(s[i])
			i++
		}
		if i >= len(s) || !isLetter(s[i]) {
			continue
		}
		j := i
		for j < len(s) && (isLetter(s[j]) || s[j] == '_' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		if j+1 < len(s) && s[j] == '"' && s[j+1] == ':' {
			b.WriteByte('"')
		}
		b.WriteString(s[i:j])
		i = j
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
