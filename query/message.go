package query

const (
	// BodyField names the message text rather than a header.
	BodyField = "body"
	// DateField is the header compared by date operations.
	DateField = "date"
)

// Message is the view of a mail message that predicates evaluate.
// Field names are header names and are matched case-insensitively.
type Message interface {
	// Field returns the value of the named header and whether it is present.
	Field(name string) (string, bool)
	IsMultipart() bool
	// FirstBodyPart returns the first child of a multipart message, or nil.
	FirstBodyPart() Message
	BodyText() string
	// MessageID returns the message's own identifier without angle brackets.
	MessageID() (string, bool)
	// InReplyTo returns the identifier of the message this one replies to.
	InReplyTo() (string, bool)
	// Date returns the raw Date header.
	Date() (string, bool)
}
