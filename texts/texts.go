package texts

import (
	"embed"
	"strings"
)

//go:embed snippets/*
var snippets embed.FS

type ITexts interface {
	// Get returns the named snippet verbatim.
	Get(id string) string
	// WithVals returns the named snippet with {{key}} placeholders replaced.
	WithVals(id string, vals map[string]string) string
}

type texts struct {
	items map[string]string
}

func NewTexts() ITexts {

	items := make(map[string]string)
	entries, err := snippets.ReadDir("snippets")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		bytes, err := snippets.ReadFile("snippets/" + entry.Name())
		if err != nil {
			panic(err)
		}
		id := strings.TrimSuffix(entry.Name(), ".html")
		items[id] = strings.TrimSpace(string(bytes))
	}
	return &texts{items: items}
}

func (t *texts) Get(id string) string {
	return t.items[id]
}

func (t *texts) WithVals(id string, vals map[string]string) string {
	res := t.Get(id)
	for key, val := range vals {
		res = strings.ReplaceAll(res, "{{"+key+"}}", val)
	}
	return res
}
