package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var promptFuncs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}

		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if len(s) == 0 {
			return s
		}

		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items []interface{}) string {
		strItems := make([]string, len(items))
		for i, item := range items {
			strItems[i] = fmt.Sprintf("%v", item)
		}

		return strings.Join(strItems, sep)
	},
}

// RenderTemplate expands instruction templates against session state using
// text/template, with a few string helpers (default, upper, lower, title,
// join). Text without template markers is returned as-is.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("prompt").Funcs(promptFuncs).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}

	return buf.String(), nil
}
