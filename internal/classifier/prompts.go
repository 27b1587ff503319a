package classifier

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompts/eligibility.md
var eligibilityPromptRaw string

// EligibilityTemplate is the parsed prompt used by LLMClassifier.
var EligibilityTemplate = template.Must(template.New("eligibility").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(eligibilityPromptRaw))
