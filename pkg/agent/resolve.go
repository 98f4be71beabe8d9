package agent

import (
	"regexp"
	"strings"
)

// queueManagerPattern matches candidate queue manager names: an uppercase
// letter followed by 1-19 uppercase letters, digits, underscores, periods
// or spaces.
var queueManagerPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9_. ]{1,19}\b`)

// notQueueManagers are uppercase words that are never queue manager names.
var notQueueManagers = map[string]bool{
	"MQ": true, "IBM": true, "THE": true, "QMGR": true,
	"QUEUE": true, "MANAGER": true, "IS": true, "ON": true,
	"IN": true, "TO": true, "OF": true, "FOR": true,
	"AND": true, "OR": true,
}

// needsQueueManagerPatterns are topics that only make sense against a
// specific queue manager. Matched against the lowercased question.
var needsQueueManagerPatterns = compileAll(
	`how many.*queue`, `list.*queue`, `show.*queue`, `count.*queue`,
	`how many.*channel`, `list.*channel`, `show.*channel`,
	`status`, `running`, `check.*queue`, `on.*qmgr`, `on.*queue manager`,
	`queues.*on`, `queues.*in`, `channels.*on`, `channels.*in`,
)

// listAllPhrases mark requests for the global queue manager inventory.
var listAllPhrases = []string{"list all queue manager", "list queue manager"}

// vaguePhrases are rewritten to the remembered queue manager, in order.
// The replacement keeps any leading preposition.
var vaguePhrases = []struct {
	phrase string
	prefix string
}{
	{"the qmgr", ""},
	{"on qmgr", "on "},
	{"in qmgr", "in "},
	{"the queue manager", ""},
	{"that qmgr", ""},
}

// ClarificationPrompt is returned when a question needs a queue manager and
// none is known for the session.
const ClarificationPrompt = "Which queue manager would you like me to check? (You can say 'list all queue managers' to see available ones)"

// Rewrite kinds reported by Enhance.
const (
	RewriteNone       = ""
	RewriteRemember   = "remember"
	RewriteSubstitute = "substitute"
	RewriteAnnotate   = "annotate"
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// ExtractQueueManagers returns every candidate queue manager name in text,
// in order of appearance.
func ExtractQueueManagers(text string) []string {
	var names []string
	for _, m := range queueManagerPattern.FindAllString(text, -1) {
		if notQueueManagers[m] {
			continue
		}
		names = append(names, m)
	}
	return names
}

// NeedsQueueManager reports whether question asks about a specific queue
// manager without naming one. Requests to list all queue managers never do.
func NeedsQueueManager(question string) bool {
	lower := strings.ToLower(question)

	topical := false
	for _, re := range needsQueueManagerPatterns {
		if re.MatchString(lower) {
			topical = true
			break
		}
	}
	if !topical {
		return false
	}

	if len(ExtractQueueManagers(question)) > 0 {
		return false
	}

	for _, phrase := range listAllPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// Resolution is the outcome of Enhance.
type Resolution struct {
	// Question is the standalone question to forward.
	Question string

	// Remember is the queue manager name to store for later turns, if any.
	Remember string

	// Kind is one of the Rewrite constants.
	Kind string
}

// Enhance turns question into a standalone question using lastQueueManager,
// the name remembered from earlier turns (empty if none).
//
// An explicitly named queue manager always wins and is returned for
// remembering. Otherwise a question that needs a queue manager has vague
// references replaced by the remembered name, or is annotated with it when
// no vague reference is present.
func Enhance(question, lastQueueManager string) Resolution {
	if names := ExtractQueueManagers(question); len(names) > 0 {
		return Resolution{
			Question: question,
			Remember: strings.TrimSpace(names[0]),
			Kind:     RewriteRemember,
		}
	}

	if lastQueueManager == "" || !NeedsQueueManager(question) {
		return Resolution{Question: question}
	}

	enhanced := question
	for _, v := range vaguePhrases {
		enhanced = strings.Replace(enhanced, v.phrase, v.prefix+lastQueueManager, 1)
	}
	if enhanced != question {
		return Resolution{Question: enhanced, Kind: RewriteSubstitute}
	}

	return Resolution{
		Question: question + " (Queue manager: " + lastQueueManager + ")",
		Kind:     RewriteAnnotate,
	}
}
