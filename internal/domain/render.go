package domain

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
)

// Placeholder text substituted when a card's field payload cannot be parsed.
// Rendering must never abort a live session over bad data.
const (
	placeholderUnreadable = "Error reading card"
	placeholderEmpty      = "Empty card"
)

// NoteField is one named field of a note, stored as a JSON array on the note.
type NoteField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var (
	clozeRe = regexp.MustCompile(`\{\{c\d+::(.*?)(?:::(.*?))?\}\}`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes markup tags, decodes entities, and collapses whitespace
// runs so field text can be spoken aloud.
func StripHTML(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(tagRe.ReplaceAllString(s, " "))), " ")
}

// processCloze rewrites cloze deletions. On the question side a deletion
// becomes its hint, or the word "blank" when no hint is given. On the answer
// side it becomes the deleted text.
func processCloze(text string, showAnswer bool) string {
	return clozeRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := clozeRe.FindStringSubmatch(m)
		answer, hint := groups[1], groups[2]
		if showAnswer {
			return answer
		}
		if hint != "" {
			return hint
		}
		return "blank"
	})
}

// RenderCard parses a note's field JSON and produces the spoken front and
// back text for the given card type. Unparseable payloads yield placeholder
// text rather than an error.
func RenderCard(fieldsJSON, cardType string) (front, back string) {
	var fields []NoteField
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return placeholderUnreadable, ""
	}
	if len(fields) == 0 {
		return placeholderEmpty, ""
	}

	if cardType == "cloze" {
		text := fields[0].Value
		return StripHTML(processCloze(text, false)), StripHTML(processCloze(text, true))
	}

	// Basic card: first field is the front, second the back.
	front = StripHTML(fields[0].Value)
	if len(fields) > 1 {
		back = StripHTML(fields[1].Value)
	} else {
		back = front
	}
	return front, back
}
