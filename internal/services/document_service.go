package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
)

// Author identifies who is writing a document or note: a human account (ID
// set) or an agent acting under an API key (name only).
type Author struct {
	ID   *string
	Name string
	Type string
}

// HumanAuthor builds an Author for an account holder.
func HumanAuthor(accountID, email string) Author {
	id := accountID
	return Author{ID: &id, Name: email, Type: models.AuthorTypeUser}
}

// AgentAuthor builds an Author for an agent identity.
func AgentAuthor(agentName string) Author {
	return Author{Name: agentName, Type: models.AuthorTypeAgent}
}

// DocumentService manages collaborator workspace documents and their notes.
type DocumentService struct {
	db *gorm.DB
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	if db == nil {
		return nil, errors.New("document service: db is required")
	}
	return &DocumentService{db: db}, nil
}

// CreateDocument stores a new document attributed to the author.
func (s *DocumentService) CreateDocument(ctx context.Context, title, content string, author Author) (*models.Document, error) {
	ctx = ensureContext(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	doc := &models.Document{
		Title:      title,
		Content:    content,
		AuthorID:   author.ID,
		AuthorName: author.Name,
	}

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, apperrors.Wrap(err, "create document")
	}
	return doc, nil
}

// ListDocuments returns documents ordered by most recent update.
func (s *DocumentService) ListDocuments(ctx context.Context) ([]models.Document, error) {
	ctx = ensureContext(ctx)

	var docs []models.Document
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&docs).Error; err != nil {
		return nil, apperrors.Wrap(err, "list documents")
	}
	return docs, nil
}

// GetDocument fetches a single document by id.
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("id is required")
	}

	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "find document")
	}
	return &doc, nil
}

// UpdateDocument replaces a document's title and content, re-attributing it
// to the editing author.
func (s *DocumentService) UpdateDocument(ctx context.Context, id, title, content string, author Author) (*models.Document, error) {
	ctx = ensureContext(ctx)

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"title":       strings.TrimSpace(title),
		"content":     content,
		"author_id":   author.ID,
		"author_name": author.Name,
	}
	if err := s.db.WithContext(ctx).Model(doc).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(err, "update document")
	}

	return s.GetDocument(ctx, id)
}

// DeleteDocument removes a document and its notes.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("id is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Note{}).Error; err != nil {
			return fmt.Errorf("delete notes: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&models.Document{})
		if result.Error != nil {
			return fmt.Errorf("delete document: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// CreateFromUpload turns an uploaded file into a document. Text formats are
// stored inline; anything else is stored as a reference stub.
func (s *DocumentService) CreateFromUpload(ctx context.Context, filename, mimeType string, size int64, data []byte, author Author) (*models.Document, error) {
	ctx = ensureContext(ctx)

	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperrors.NewBadRequest("No file uploaded")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if title == "" {
		title = "Untitled"
	}

	var content string
	switch ext {
	case ".md", ".markdown", ".txt", ".text":
		content = string(data)
	default:
		content = fmt.Sprintf("[Uploaded file: %s]\n\nFile type: %s\nSize: %.2f KB",
			filename, mimeType, float64(size)/1024)
	}

	return s.CreateDocument(ctx, title, content, author)
}

// CreateNote attaches a note to an existing document. The document must
// exist; agent callers get a 404 rather than a silent orphan.
func (s *DocumentService) CreateNote(ctx context.Context, documentID, content string, author Author) (*models.Note, error) {
	ctx = ensureContext(ctx)

	documentID = strings.TrimSpace(documentID)
	if documentID == "" || strings.TrimSpace(content) == "" {
		return nil, apperrors.NewBadRequest("document_id and content are required")
	}

	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	authorType := author.Type
	if authorType == "" {
		authorType = models.AuthorTypeUser
	}

	note := &models.Note{
		DocumentID: documentID,
		Content:    content,
		AuthorName: author.Name,
		AuthorType: authorType,
	}

	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, apperrors.Wrap(err, "create note")
	}
	return note, nil
}

// ListNotes returns notes newest-first, optionally filtered by document.
func (s *DocumentService) ListNotes(ctx context.Context, documentID string) ([]models.Note, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("created_at DESC")
	if documentID = strings.TrimSpace(documentID); documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}

	var notes []models.Note
	if err := query.Find(&notes).Error; err != nil {
		return nil, apperrors.Wrap(err, "list notes")
	}
	return notes, nil
}
