package ai

import (
	_ "embed"
	"strings"
	"text/template"
)

// Prompt templates are parsed once at package init and reused on every call.

//go:embed prompts/classify.md
var classifyPromptRaw string

//go:embed prompts/extract.md
var extractPromptRaw string

//go:embed prompts/score.md
var scorePromptRaw string

//go:embed prompts/resume.md
var resumePromptRaw string

var (
	classifyTemplate = template.Must(template.New("classify").Parse(classifyPromptRaw))
	extractTemplate  = template.Must(template.New("extract").Parse(extractPromptRaw))
	scoreTemplate    = template.Must(template.New("score").
				Funcs(template.FuncMap{"join": strings.Join}).
				Parse(scorePromptRaw))
	resumeTemplate = template.Must(template.New("resume").Parse(resumePromptRaw))
)
