package llm

import (
	"encoding/json"
	"strings"
)

// lineOutcome classifies one wire line of the event stream.
type lineOutcome int

const (
	// lineSkip: not a content line. Covers blank lines, non-data lines,
	// empty payloads, payloads that fail to parse (fragments split
	// across network reads) and deltas with no content.
	lineSkip lineOutcome = iota

	// lineContent: the line carried a non-empty content delta.
	lineContent

	// lineDone: the [DONE] sentinel; ends the stream.
	lineDone
)

type streamPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// decodeStreamLine decodes one line of a `data: <json>` event stream.
// Malformed payloads are skipped, never fatal.
func decodeStreamLine(line string) (string, lineOutcome) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", lineSkip
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return "", lineSkip
	}
	if data == "[DONE]" {
		return "", lineDone
	}

	var decoded streamPayload
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return "", lineSkip
	}
	if len(decoded.Choices) == 0 {
		return "", lineSkip
	}
	delta := decoded.Choices[0].Delta.Content
	if delta == "" {
		return "", lineSkip
	}
	return delta, lineContent
}
