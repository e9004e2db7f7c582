package comments

import (
	"github.com/petr-muller/issuedesk/internal/issuedesk/imageenc"
)

// Composer holds the draft of a new comment and whether it is being submitted.
// Draft is the editable text; attached images appear in it as short references.
type Composer struct {
	Draft string

	attachments Attachments
	inFlight    bool
}

// InFlight reports whether a submission is pending
func (c *Composer) InFlight() bool {
	return c.inFlight
}

// CanSubmit reports whether Begin would accept the draft
func (c *Composer) CanSubmit() bool {
	return !c.inFlight && !IsBlank(c.Draft)
}

// Begin marks the draft as being submitted and returns the text to store,
// with images expanded. It returns false, leaving everything untouched, for
// a blank draft or when a submission is already pending.
func (c *Composer) Begin() (string, bool) {
	if !c.CanSubmit() {
		return "", false
	}
	c.inFlight = true
	return c.attachments.Expand(c.Draft), true
}

// Finish ends a submission. The draft is cleared only when it succeeded.
func (c *Composer) Finish(err error) {
	c.inFlight = false
	if err == nil {
		c.Draft = ""
		c.attachments.Reset()
	}
}

// Attach appends an embedded image referencing the data URI to the draft
func (c *Composer) Attach(dataURI string) {
	c.Draft = imageenc.AppendToken(c.Draft, c.attachments.Add(dataURI))
}

// Attachments returns the number of images attached to the draft
func (c *Composer) Attachments() int {
	return c.attachments.Len()
}
