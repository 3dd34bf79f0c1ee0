package models

// Author types recorded against collaborator notes.
const (
	AuthorTypeUser  = "USER"
	AuthorTypeAgent = "AGENT"
)

// Document is an entry in the collaborator workspace. AuthorID is nil when the
// author is an agent; authorship then lives in AuthorName only.
type Document struct {
	BaseModel

	Title   string `gorm:"not null" json:"title"`
	Content string `json:"content"`

	AuthorID   *string `gorm:"type:uuid" json:"author_id,omitempty"`
	AuthorName string  `json:"author_name"`

	Notes []Note `gorm:"foreignKey:DocumentID" json:"notes,omitempty"`
}

// Note is a comment attached to a document, written by a user or an agent.
type Note struct {
	BaseModel

	DocumentID string `gorm:"type:uuid;not null;index" json:"document_id"`
	Content    string `gorm:"not null" json:"content"`

	AuthorName string `json:"author_name"`
	AuthorType string `gorm:"not null;default:USER" json:"author_type"`
}
