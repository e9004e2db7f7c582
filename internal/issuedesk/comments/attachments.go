package comments

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	embeddedImage = regexp.MustCompile(`!\[image\]\((data:image/[^)]+)\)`)
	attachmentRef = regexp.MustCompile(`!\[image\]\(attachment:([0-9a-f]+)-(\d+)\)`)
)

// Attachments keeps embedded image data out of editable text. The text
// refers to each image through a short "attachment:<key>-<n>" reference that
// is expanded back to the data URI before the text is saved. The key is
// random per buffer, so reference-like text typed by the user is left alone.
type Attachments struct {
	key  string
	uris []string
}

// Add registers a data URI and returns the reference to use in its place
func (a *Attachments) Add(dataURI string) string {
	if a.key == "" {
		a.key = strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	a.uris = append(a.uris, dataURI)
	return a.ref(len(a.uris))
}

func (a *Attachments) ref(n int) string {
	return fmt.Sprintf("attachment:%s-%d", a.key, n)
}

// Collapse replaces the data URIs of embedded images with references
func (a *Attachments) Collapse(text string) string {
	return embeddedImage.ReplaceAllStringFunc(text, func(token string) string {
		uri := embeddedImage.FindStringSubmatch(token)[1]
		return "![image](" + a.Add(uri) + ")"
	})
}

// Expand replaces references with the data URIs they stand for. Unknown references are kept.
func (a *Attachments) Expand(text string) string {
	if a.key == "" {
		return text
	}
	return attachmentRef.ReplaceAllStringFunc(text, func(token string) string {
		match := attachmentRef.FindStringSubmatch(token)
		if match[1] != a.key {
			return token
		}
		n, err := strconv.Atoi(match[2])
		if err != nil || n < 1 || n > len(a.uris) {
			return token
		}
		return "![image](" + a.uris[n-1] + ")"
	})
}

// Len returns the number of registered attachments
func (a *Attachments) Len() int {
	return len(a.uris)
}

// Reset forgets all attachments
func (a *Attachments) Reset() {
	a.key = ""
	a.uris = nil
}
