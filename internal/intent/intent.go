// Package intent classifies free-form user messages into conversation intents.
//
// Detection is keyword based and checks every supported language regardless of
// the user's configured language, so a Japanese keyword typed by a user whose
// profile says English still routes correctly.
package intent

import (
	"log/slog"
	"regexp"
	"strings"
)

// Intent is the detected conversational goal of a message.
type Intent string

const (
	IntentJobSearch Intent = "job_search"
	IntentGreeting  Intent = "greeting"
	IntentContact   Intent = "contact"
	IntentUnknown   Intent = "unknown"
)

// Action tells the caller how to respond to a detected intent.
type Action string

const (
	ActionStartDiagnosis Action = "start_diagnosis_immediately"
	ActionGreet          Action = "greet"
	ActionShowContact    Action = "show_contact"
	ActionUseOpenAI      Action = "use_openai"
)

// Detection is the result of classifying one message.
type Detection struct {
	Intent     Intent
	Confidence float64
	Trigger    string // the pattern that matched, empty for unknown
	Action     Action
}

// Patterns are grouped per language for readability; matching always walks
// every language group.
var jobSearchPatterns = map[string][]*regexp.Regexp{
	"ja": compileAll(`仕事`, `しごと`, `求人`, `バイト`, `アルバイト`, `パート`, `就職`, `転職`, `働`, `はたら`, `さが`, `探`),
	"en": compileAll(`job`, `work`, `employment`, `looking`, `search`, `find`),
	"ko": compileAll(`일자리`, `구직`, `취업`, `일`, `아르바이트`, `알바`, `찾`),
	"zh": compileAll(`工作`, `求职`, `找`),
	"vi": compileAll(`việc`, `công việc`, `tìm`),
}

// Greetings only match the whole message, so "hello, I need a job" is not a
// greeting.
var greetingPatterns = map[string][]*regexp.Regexp{
	"ja": compileAll(`^(こんにちは|こんばんは|おはよう|はじめまして|よろしく)$`),
	"en": compileAll(`^(hello|hi|hey|good morning|good afternoon|good evening)$`),
	"ko": compileAll(`^(안녕|안녕하세요|처음 뵙겠습니다)$`),
	"zh": compileAll(`^(你好|您好|嗨|早上好)$`),
	"vi": compileAll(`^(xin chào|chào)$`),
}

var contactPatterns = map[string][]*regexp.Regexp{
	"ja": compileAll(`質問`, `相談`, `聞きたい`, `教えて`, `わからない`, `知りたい`, `連絡`),
	"en": compileAll(`contact`, `question`, `ask`, `inquiry`),
	"ko": compileAll(`질문`, `상담`),
	"zh": compileAll(`询问`),
	"vi": compileAll(`liên hệ`, `hỏi`, `tư vấn`),
}

func compileAll(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(expr)
	}
	return patterns
}

// Detect classifies a message. Families are checked in fixed priority order:
// job search beats greeting beats contact, and anything unmatched is handed
// to the assistant. Every language's patterns are tested regardless of lang;
// the profile language only contextualizes the log.
func Detect(message, lang string) Detection {
	lower := strings.ToLower(message)
	slog.Debug("intent.Detect invoked", "length", len(message), "lang", lang)

	if trigger, ok := matchAny(jobSearchPatterns, message, lower); ok {
		slog.Debug("intent.Detect matched job search", "trigger", trigger)
		return Detection{Intent: IntentJobSearch, Confidence: 0.95, Trigger: trigger, Action: ActionStartDiagnosis}
	}
	if trigger, ok := matchAny(greetingPatterns, lower, lower); ok {
		slog.Debug("intent.Detect matched greeting", "trigger", trigger)
		return Detection{Intent: IntentGreeting, Confidence: 0.95, Trigger: trigger, Action: ActionGreet}
	}
	if trigger, ok := matchAny(contactPatterns, message, lower); ok {
		slog.Debug("intent.Detect matched contact", "trigger", trigger)
		return Detection{Intent: IntentContact, Confidence: 0.90, Trigger: trigger, Action: ActionShowContact}
	}

	slog.Debug("intent.Detect no match, deferring to assistant")
	return Detection{Intent: IntentUnknown, Action: ActionUseOpenAI}
}

// matchAny walks every language group and returns the first matching pattern.
// Both the raw and lowercased message are tested so case never matters.
func matchAny(groups map[string][]*regexp.Regexp, raw, lower string) (string, bool) {
	// fixed language order keeps matching deterministic
	for _, lang := range []string{"ja", "en", "ko", "zh", "vi"} {
		for _, pattern := range groups[lang] {
			if pattern.MatchString(raw) || pattern.MatchString(lower) {
				return pattern.String(), true
			}
		}
	}
	return "", false
}

// JobConditions are search hints extracted from a free-form job request.
type JobConditions struct {
	Location      string
	JapaneseLevel string
	Urgency       string
}

var (
	locationPatterns = []struct {
		key     string
		pattern *regexp.Regexp
	}{
		{"tokyo", regexp.MustCompile(`(?i)(東京|とうきょう|tokyo)`)},
		{"osaka", regexp.MustCompile(`(?i)(大阪|おおさか|osaka)`)},
		{"kyoto", regexp.MustCompile(`(?i)(京都|きょうと|kyoto)`)},
		{"fukuoka", regexp.MustCompile(`(?i)(福岡|ふくおか|fukuoka)`)},
	}
	jlptPattern       = regexp.MustCompile(`(?i)N([1-5])`)
	noJapanesePattern = regexp.MustCompile(`日本語.*(できない|不要|話せない)`)
	urgencyPattern    = regexp.MustCompile(`(?i)(すぐ|今すぐ|即日|急|immediately)`)
)

// ExtractJobConditions pulls location, language level, and urgency hints out
// of a job-search message. Missing fields stay empty.
func ExtractJobConditions(message string) JobConditions {
	var c JobConditions
	for _, loc := range locationPatterns {
		if loc.pattern.MatchString(message) {
			c.Location = loc.key
			break
		}
	}
	if m := jlptPattern.FindStringSubmatch(message); m != nil {
		c.JapaneseLevel = "n" + m[1]
	} else if noJapanesePattern.MatchString(message) {
		c.JapaneseLevel = "no_japanese"
	}
	if urgencyPattern.MatchString(message) {
		c.Urgency = "immediate"
	}
	return c
}
