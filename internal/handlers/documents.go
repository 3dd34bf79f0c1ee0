package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/middleware"
	"github.com/rbigger/aiamp/internal/models"
	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// maxUploadBytes caps document uploads at 10MB.
const maxUploadBytes = 10 << 20

// DocumentHandler serves the collaborator workspace: documents, notes, upload.
// The gate has already established an approved collaborator or admin session.
type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

type createDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=256"`
	Content string `json:"content"`
}

type updateDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=256"`
	Content string `json:"content"`
}

type createNoteRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

type documentDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorID   *string   `json:"author_id,omitempty"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type noteDTO struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name"`
	AuthorType string    `json:"author_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDocumentDTO(doc *models.Document) documentDTO {
	return documentDTO{
		ID:         doc.ID,
		Title:      doc.Title,
		Content:    doc.Content,
		AuthorID:   doc.AuthorID,
		AuthorName: doc.AuthorName,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func toNoteDTO(note *models.Note) noteDTO {
	return noteDTO{
		ID:         note.ID,
		DocumentID: note.DocumentID,
		Content:    note.Content,
		AuthorName: note.AuthorName,
		AuthorType: note.AuthorType,
		CreatedAt:  note.CreatedAt,
	}
}

func sessionAuthor(c *gin.Context) (services.Author, bool) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return services.Author{}, false
	}
	return services.HumanAuthor(account.ID, account.Email), true
}

// GET /api/collab/documents
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.ListDocuments(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]documentDTO, 0, len(docs))
	for i := range docs {
		items = append(items, toDocumentDTO(&docs[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"documents": items})
}

// POST /api/collab/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	author, ok := sessionAuthor(c)
	if !ok {
		return
	}

	var req createDocumentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	doc, err := h.docs.CreateDocument(requestContext(c), req.Title, req.Content, author)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"document": toDocumentDTO(doc)})
}

// GET /api/collab/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetDocument(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"document": toDocumentDTO(doc)})
}

// PUT /api/collab/documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	author, ok := sessionAuthor(c)
	if !ok {
		return
	}

	var req updateDocumentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	doc, err := h.docs.UpdateDocument(requestContext(c), c.Param("id"), req.Title, req.Content, author)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"document": toDocumentDTO(doc)})
}

// DELETE /api/collab/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.docs.DeleteDocument(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/collab/upload
//
// Multipart upload of a single "file" field. Text formats become the document
// body; binary formats are stored as a reference stub.
func (h *DocumentHandler) Upload(c *gin.Context) {
	author, ok := sessionAuthor(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("No file uploaded"))
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, appErrors.NewBadRequest("File exceeds the 10MB upload limit"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	if len(data) > maxUploadBytes {
		response.Error(c, appErrors.NewBadRequest("File exceeds the 10MB upload limit"))
		return
	}

	doc, err := h.docs.CreateFromUpload(requestContext(c),
		header.Filename, header.Header.Get("Content-Type"), header.Size, data, author)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"document": toDocumentDTO(doc)})
}

// GET /api/collab/notes
func (h *DocumentHandler) ListNotes(c *gin.Context) {
	notes, err := h.docs.ListNotes(requestContext(c), c.Query("document_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]noteDTO, 0, len(notes))
	for i := range notes {
		items = append(items, toNoteDTO(&notes[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"notes": items})
}

// POST /api/collab/notes
func (h *DocumentHandler) CreateNote(c *gin.Context) {
	author, ok := sessionAuthor(c)
	if !ok {
		return
	}

	var req createNoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.docs.CreateNote(requestContext(c), req.DocumentID, req.Content, author)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"note": toNoteDTO(note)})
}
