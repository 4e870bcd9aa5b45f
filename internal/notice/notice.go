// Package notice renders the user-visible messages produced by the job
// lifecycle in the viewer's language.
package notice

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Kind identifies a notice independent of its wording.
type Kind string

const (
	KindSubmitAccepted   Kind = "submit_accepted"
	KindEmptyInput       Kind = "empty_input"
	KindSubmissionFailed Kind = "submission_failed"
	KindJobFailed        Kind = "job_failed"
	KindPollQueryFailed  Kind = "poll_query_failed"
	KindCompleted        Kind = "completed"
)

// Level maps onto the presentation layer's toast styles.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a rendered, user-facing message.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

var levels = map[Kind]Level{
	KindSubmitAccepted:   LevelSuccess,
	KindEmptyInput:       LevelWarning,
	KindSubmissionFailed: LevelError,
	KindJobFailed:        LevelError,
	KindPollQueryFailed:  LevelError,
	KindCompleted:        LevelSuccess,
}

var supported = []language.Tag{language.English, language.Chinese}

var messages = map[language.Tag]map[Kind]string{
	language.English: {
		KindSubmitAccepted:   "Task submitted, generating...",
		KindEmptyInput:       "Please enter the novel text",
		KindSubmissionFailed: "Task submission failed",
		KindJobFailed:        "Generation failed",
		KindPollQueryFailed:  "Progress query failed",
		KindCompleted:        "Generation completed",
	},
	language.Chinese: {
		KindSubmitAccepted:   "任务已提交，正在生成...",
		KindEmptyInput:       "请输入小说内容",
		KindSubmissionFailed: "任务提交失败",
		KindJobFailed:        "生成失败",
		KindPollQueryFailed:  "进度查询失败",
		KindCompleted:        "生成完成",
	},
}

// Catalog renders notices. It is safe for concurrent use.
type Catalog struct {
	matcher  language.Matcher
	printers map[language.Tag]*message.Printer
}

// NewCatalog builds the catalog for every supported language.
func NewCatalog() *Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range messages {
		for kind, text := range entries {
			_ = builder.SetString(tag, string(kind), text)
		}
	}
	printers := make(map[language.Tag]*message.Printer, len(supported))
	for _, tag := range supported {
		printers[tag] = message.NewPrinter(tag, message.Catalog(builder))
	}
	return &Catalog{
		matcher:  language.NewMatcher(supported),
		printers: printers,
	}
}

// Normalize maps an arbitrary locale or Accept-Language value to a
// supported language code ("en" or "zh").
func (c *Catalog) Normalize(locale string) string {
	return c.tag(locale).String()
}

// Render produces the notice for kind. For KindJobFailed a non-empty
// detail (the backend's own message) replaces the localized fallback.
func (c *Catalog) Render(locale string, kind Kind, detail string) Notice {
	level, ok := levels[kind]
	if !ok {
		level = LevelInfo
	}
	text := ""
	if kind == KindJobFailed {
		text = strings.TrimSpace(detail)
	}
	if text == "" {
		text = c.printers[c.tag(locale)].Sprintf(string(kind))
	}
	return Notice{Kind: kind, Level: level, Message: text}
}

func (c *Catalog) tag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return supported[0]
	}
	desired, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(desired) == 0 {
		return supported[0]
	}
	_, idx, conf := c.matcher.Match(desired...)
	if conf != language.No {
		return supported[idx]
	}
	// Regional or script variants the matcher rejects still share a base.
	for _, want := range desired {
		wantBase, _ := want.Base()
		for _, tag := range supported {
			if base, _ := tag.Base(); base == wantBase {
				return tag
			}
		}
	}
	return supported[0]
}
