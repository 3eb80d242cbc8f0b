// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sections maps manuscript Markdown to an ordered view of named
// sections and splices generated text back into the source.
//
// The codec is textual: a section starts at the literal "## " marker and a
// title at the first "# ". Parsing never fails; text without structure
// yields an empty Map. Section bodies that themselves contain "## " are
// split at that point.
package sections

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	titleMarker   = "# "
	sectionMarker = "## "
	// lineMarker is a section heading that starts a line after a body.
	lineMarker = "\n" + sectionMarker
)

// TitleKey is the reserved Map key holding the first-level heading text.
const TitleKey = "title"

// Parse splits Markdown text into a Map. The first "# " occurrence up to the
// next newline becomes the title. Each fragment after a "## " marker is one
// section: its first line, lower-cased, is the key and the rest, trimmed, is
// the body. A repeated heading overwrites the earlier body.
func Parse(text string) *Map {
	m := NewMap()
	if text == "" {
		return m
	}

	if i := strings.Index(text, titleMarker); i >= 0 {
		line, _, _ := strings.Cut(text[i+len(titleMarker):], "\n")
		m.Set(TitleKey, strings.TrimSpace(line))
	}

	fragments := strings.Split(text, sectionMarker)
	for _, frag := range fragments[1:] {
		name, body, found := strings.Cut(frag, "\n")
		if found {
			body = strings.TrimSpace(body)
		}
		m.Set(strings.ToLower(name), body)
	}

	return m
}

// Serialize renders a Map as Markdown: the title heading when present, then
// every section under its capitalized heading, separated by blank lines.
// Parse(Serialize(m)) reproduces m as long as no body contains "## ".
func Serialize(m *Map) string {
	var b strings.Builder
	if title, ok := m.Get(TitleKey); ok {
		b.WriteString(titleMarker)
		b.WriteString(title)
	}
	for _, s := range m.Sections() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(Heading(s.Name))
		b.WriteString("\n")
		b.WriteString(s.Body)
	}
	return b.String()
}

// Capitalize upper-cases the first rune of name and lower-cases the rest,
// the display form used for section headings.
func Capitalize(name string) string {
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}

// Heading returns the second-level heading line for a section name.
func Heading(name string) string {
	return sectionMarker + Capitalize(name)
}

// Append adds a new section at the end of source.
func Append(source, name, body string) string {
	return source + "\n\n" + Heading(name) + "\n" + body
}

// HasSection reports whether source contains the heading line for name.
// Headings match case-insensitively.
func HasSection(source, name string) bool {
	start, _ := findHeading(source, Heading(name))
	return start >= 0
}

// Replace swaps the body of the named section for body, keeping all text
// before the heading and every later section, with its heading, unchanged.
// The matched heading keeps its original spelling and the line endings around
// the body are kept as they were. A repeated heading is resolved to its last
// occurrence, the one Parse reports. When the heading is absent Replace
// degrades to Append.
func Replace(source, name, body string) string {
	start, end := findHeading(source, Heading(name))
	if start < 0 {
		return Append(source, name, body)
	}

	before := source[:start]
	heading := source[start:end]
	rest := source[end:]

	eol := "\n"
	if strings.HasPrefix(strings.TrimLeft(rest, " \t"), "\r\n") {
		eol = "\r\n"
	}

	next := strings.Index(rest, lineMarker)
	if next < 0 {
		return before + heading + eol + body + trailingSpace(rest)
	}
	sep := trailingSpace(rest[:next+1])
	if sep == "" {
		// Empty old body.
		sep = eol + eol
	}
	return before + heading + eol + body + sep + rest[next+1:]
}

// trailingSpace returns the run of blank characters that ends s, or "" when
// s is blank throughout.
func trailingSpace(s string) string {
	trimmed := strings.TrimRight(s, " \t\r\n")
	if trimmed == "" {
		return ""
	}
	return s[len(trimmed):]
}

// StripEchoedHeading removes a leading heading line for name that a model
// repeated at the top of its reply.
func StripEchoedHeading(reply, name string) string {
	trimmed := strings.TrimLeft(reply, " \t\r\n")
	first, rest, found := strings.Cut(trimmed, "\n")
	if !strings.EqualFold(strings.TrimSpace(first), Heading(name)) {
		return reply
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(rest)
}

// findHeading returns the byte range of the last line equal to heading,
// ignoring case and trailing whitespace, or -1, -1. "## Intro" does not match
// a "## Introduction" line.
func findHeading(source, heading string) (int, int) {
	start, end := -1, -1
	offset := 0
	for offset <= len(source) {
		line := source[offset:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		text := strings.TrimRight(line, " \t\r")
		if strings.HasPrefix(text, sectionMarker) && strings.EqualFold(text, heading) {
			start, end = offset, offset+len(text)
		}
		offset += len(line) + 1
	}
	return start, end
}
