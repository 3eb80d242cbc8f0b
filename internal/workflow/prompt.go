// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"text/template"
)

// Instruction templates sent as the user turn. The standing context carries
// the base prompt and either the concept with retrieved knowledge or the
// whole manuscript.
var (
	titleTmpl = template.Must(template.New("title").Parse(
		`Please provide a title for the manuscript, based on this concept: {{.Concept}}.

 Only return the title, without additional text.`))

	abstractTmpl = template.Must(template.New("abstract").Parse(
		`Please write an abstract for a manuscript, based on the context provided. Only return the abstract text, without additional text.`))

	sectionTmpl = template.Must(template.New("section").Parse(
		`Please write the {{.Section}} section of the manuscript, based on the context provided. Only return the section text, without additional text.`))

	enhanceTmpl = template.Must(template.New("enhance").Parse(
		`Please enhance the {{.Section}} section of the manuscript, based on the context provided. Only return the enhanced section text, without additional text.`))

	criticizeTmpl = template.Must(template.New("criticize").Parse(
		`Please criticize the {{.Section}} section of the manuscript, based on the context provided. Only return your critical opinion of the section, indicating changes that could be applied to improve it.`))
)

// promptData is the value every instruction template is rendered with.
type promptData struct {
	Concept string
	Section string
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// conceptContext is the standing context for abstract generation.
func conceptContext(basePrompt, concept, knowledge string) string {
	return basePrompt + "\n\n" + concept + "\n\n" + knowledge
}

// manuscriptContext is the standing context for section operations.
func manuscriptContext(basePrompt, source string) string {
	return basePrompt + "\n\nManuscript:\n\n" + source
}
