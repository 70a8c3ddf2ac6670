package enhance

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"quirkfeed/internal/reddit"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).ParseFS(promptFS, "prompts/*.tmpl"))

func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func themeMessages() ([]Message, error) {
	system, err := renderPrompt("theme_system", nil)
	if err != nil {
		return nil, err
	}
	user, err := renderPrompt("theme_user", struct{ Layouts, Animations []string }{Layouts, Animations})
	if err != nil {
		return nil, err
	}
	return []Message{{Role: "system", Content: system}, {Role: "user", Content: user}}, nil
}

func captionMessages(posts []reddit.Post) ([]Message, error) {
	system, err := renderPrompt("captions_system", nil)
	if err != nil {
		return nil, err
	}
	user, err := renderPrompt("captions_user", struct{ Posts []reddit.Post }{posts})
	if err != nil {
		return nil, err
	}
	return []Message{{Role: "system", Content: system}, {Role: "user", Content: user}}, nil
}
