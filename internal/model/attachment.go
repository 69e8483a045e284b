package model

// AttachmentKind records which rule discovered an attachment
type AttachmentKind string

const (
	KindImage  AttachmentKind = "image"
	KindFile   AttachmentKind = "file"
	KindDirect AttachmentKind = "direct"
	KindStatic AttachmentKind = "static"
)

// Attachment is a file referenced from a document body. It only lives long
// enough to drive one rewrite of that body.
type Attachment struct {
	Origin   string         `json:"origin"`   // reference as written in the body
	Absolute string         `json:"absolute"` // resolved local path
	Filename string         `json:"filename"`
	Kind     AttachmentKind `json:"type"`
}
