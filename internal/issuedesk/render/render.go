// Package render turns comment text into display output. Text is always
// treated as plain text; the only structure recognized is the embedded
// image token "![image](data:image/<type>;base64,<payload>)".
package render

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

var imageToken = regexp.MustCompile(`!\[image\]\(data:(image/[A-Za-z0-9.+-]+);base64,([A-Za-z0-9+/]*={0,2})\)`)

// Segment is a piece of comment text: either plain text or a validated image
type Segment struct {
	Text  string
	Image *Image
}

// Image is an embedded image whose payload decoded successfully
type Image struct {
	MIMEType string
	Size     int
	payload  string
}

// DataURI returns the validated data URI of the image
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.payload)
}

// Parse splits comment text into text and image segments. Tokens whose
// payload is not valid base64 stay as text.
func Parse(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range imageToken.FindAllStringSubmatchIndex(text, -1) {
		mimeType := text[loc[2]:loc[3]]
		payload := text[loc[4]:loc[5]]
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil || len(decoded) == 0 {
			continue
		}
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		segments = append(segments, Segment{Image: &Image{MIMEType: mimeType, Size: len(decoded), payload: payload}})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// Terminal renders comment text for the terminal, replacing images with placeholders
func Terminal(text string) string {
	var s strings.Builder
	for _, segment := range Parse(text) {
		if segment.Image == nil {
			s.WriteString(Sanitize(segment.Text))
			continue
		}
		s.WriteString(Placeholder(*segment.Image))
	}
	return s.String()
}

// Sanitize makes untrusted text safe to write to a terminal. Escape
// sequences are stripped and the remaining control characters other than
// newline and tab are dropped.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, ansi.Strip(text))
}

// Placeholder describes an image in text form
func Placeholder(image Image) string {
	return fmt.Sprintf("[image: %s, %s]", image.MIMEType, humanize.IBytes(uint64(image.Size)))
}

var imageTemplate = template.Must(template.New("image").Parse(
	`<img src="{{.}}" alt="comment image" style="max-width: 100%; border-radius: 8px; margin-top: 8px;" />`))

// HTML renders comment text as HTML. All text is escaped; validated images
// are the only markup produced.
func HTML(text string) template.HTML {
	var s strings.Builder
	for _, segment := range Parse(text) {
		if segment.Image == nil {
			s.WriteString(template.HTMLEscapeString(segment.Text))
			continue
		}
		// the payload matched the strict pattern and decoded, so the URL is safe to emit
		if err := imageTemplate.Execute(&s, template.URL(segment.Image.DataURI())); err != nil {
			s.WriteString(template.HTMLEscapeString(Placeholder(*segment.Image)))
		}
	}
	return template.HTML(s.String())
}
