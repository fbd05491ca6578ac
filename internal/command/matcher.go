// Package command maps free-text utterances to discrete session commands.
package command

import (
	"strings"

	"github.com/phrazzld/recite/internal/domain"
)

// Command is a discrete action the session engine can execute.
type Command string

// Commands the matcher can produce.
const (
	Answer  Command = "answer"
	Hint    Command = "hint"
	Repeat  Command = "repeat"
	Again   Command = "again"
	Hard    Command = "hard"
	Good    Command = "good"
	Easy    Command = "easy"
	Explain Command = "explain"
	Suspend Command = "suspend"
	Stop    Command = "stop"
)

// definition binds a command to its spoken aliases and the phases in which
// it is legal. Aliases include German forms; the transcript source does not
// tag language.
type definition struct {
	command Command
	aliases []string
	phases  []domain.SessionPhase
}

var bothPhases = []domain.SessionPhase{domain.PhaseQuestion, domain.PhaseRating}

// definitions are scanned in declaration order; the first phase-legal alias
// match wins. Repeat is special-cased in Match and must stay present here so
// its phase gating lives in one place.
var definitions = []definition{
	{
		command: Answer,
		aliases: []string{
			"answer", "show", "show answer", "show me", "flip",
			"antwort", "zeig", "zeig mir", "umdrehen",
		},
		phases: []domain.SessionPhase{domain.PhaseQuestion},
	},
	{
		command: Hint,
		aliases: []string{
			"hint", "give me a hint", "clue",
			"hinweis", "tipp",
		},
		phases: []domain.SessionPhase{domain.PhaseQuestion},
	},
	{
		command: Repeat,
		aliases: []string{
			"repeat", "say again", "again please", "say it again", "one more time",
			"wiederholen", "nochmal bitte", "noch einmal", "nochmals",
		},
		phases: bothPhases,
	},
	{
		command: Explain,
		aliases: []string{
			"explain", "explain this", "explain it", "why",
			"erklär", "erklären", "erkläre", "warum",
		},
		phases: []domain.SessionPhase{domain.PhaseRating},
	},
	// Suspend and Stop precede the ratings: "never again" must resolve to
	// Suspend before the bare "again" alias can claim it.
	{
		command: Suspend,
		aliases: []string{
			"suspend", "suspend card", "bury", "never again",
			"aussetzen", "karte aussetzen",
		},
		phases: bothPhases,
	},
	{
		command: Stop,
		aliases: []string{
			"stop", "quit", "end", "finish", "done", "end session",
			"stopp", "aufhören", "ende", "fertig", "schluss",
		},
		phases: bothPhases,
	},
	{
		command: Again,
		aliases: []string{"again", "nochmal"},
		phases:  bothPhases,
	},
	{
		command: Hard,
		aliases: []string{"hard", "difficult", "schwer", "schwierig"},
		phases:  bothPhases,
	},
	{
		command: Good,
		aliases: []string{"good", "okay", "ok", "gut"},
		phases:  bothPhases,
	},
	{
		command: Easy,
		aliases: []string{"easy", "simple", "leicht", "einfach"},
		phases:  bothPhases,
	},
}

// Match resolves a transcript to a command given the current phase, or
// returns ok=false when nothing matches. An unmatched utterance is silently
// ignored by callers, never an error.
//
// Repeat aliases are checked before everything else so that phrases like
// "say again" or "again please" resolve to Repeat rather than the bare
// "again" rating. All containment is whole-phrase: an alias only matches as
// a standalone token sequence, never inside a longer word.
func Match(transcript string, phase domain.SessionPhase) (Command, bool) {
	normalized := normalize(transcript)
	if normalized == "" {
		return "", false
	}

	repeat := definitionFor(Repeat)
	if phaseLegal(repeat, phase) {
		for _, alias := range repeat.aliases {
			if alias == "repeat" {
				if normalized == alias {
					return Repeat, true
				}
				continue
			}
			if containsPhrase(normalized, alias) {
				return Repeat, true
			}
		}
	}

	for _, def := range definitions {
		if def.command == Repeat {
			continue
		}
		if !phaseLegal(def, phase) {
			continue
		}
		for _, alias := range def.aliases {
			if normalized == alias || containsPhrase(normalized, alias) {
				return def.command, true
			}
		}
	}

	return "", false
}

// normalize lowercases the transcript, strips trailing punctuation from each
// token, and collapses whitespace. Speech transcripts arrive with arbitrary
// punctuation and spacing.
func normalize(transcript string) string {
	lowered := strings.ToLower(strings.TrimSpace(transcript))
	words := strings.Fields(lowered)
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!?;:")
	}
	return strings.Join(words, " ")
}

func definitionFor(c Command) definition {
	for _, def := range definitions {
		if def.command == c {
			return def
		}
	}
	return definition{}
}

func phaseLegal(def definition, phase domain.SessionPhase) bool {
	for _, p := range def.phases {
		if p == phase {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase appears in text as a standalone
// token sequence. "gut" matches "sehr gut" but not "gutachten".
func containsPhrase(text, phrase string) bool {
	words := strings.Fields(text)
	parts := strings.Fields(phrase)
	if len(parts) == 0 || len(parts) > len(words) {
		return false
	}
	for i := 0; i+len(parts) <= len(words); i++ {
		match := true
		for j := range parts {
			if words[i+j] != parts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
