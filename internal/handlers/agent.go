package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbigger/aiamp/internal/middleware"
	"github.com/rbigger/aiamp/internal/services"
	appErrors "github.com/rbigger/aiamp/pkg/errors"
	"github.com/rbigger/aiamp/pkg/response"
)

// AgentHandler is the machine-facing document surface. The API key middleware
// has already authenticated the caller and checked the method's scope; writes
// are attributed to the agent name, never to a human account.
type AgentHandler struct {
	docs *services.DocumentService
}

func NewAgentHandler(docs *services.DocumentService) *AgentHandler {
	return &AgentHandler{docs: docs}
}

type agentCreateDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=256"`
	Content string `json:"content"`
}

type agentCreateNoteRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

func agentAuthor(c *gin.Context) (services.Author, bool) {
	agent, ok := middleware.CurrentAgent(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return services.Author{}, false
	}
	return services.AgentAuthor(agent.AgentName), true
}

// GET /api/collab/agent/documents
func (h *AgentHandler) ListDocuments(c *gin.Context) {
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

// POST /api/collab/agent/documents
func (h *AgentHandler) CreateDocument(c *gin.Context) {
	author, ok := agentAuthor(c)
	if !ok {
		return
	}

	var req agentCreateDocumentRequest
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

// GET /api/collab/agent/notes
func (h *AgentHandler) ListNotes(c *gin.Context) {
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

// POST /api/collab/agent/notes
func (h *AgentHandler) CreateNote(c *gin.Context) {
	author, ok := agentAuthor(c)
	if !ok {
		return
	}

	var req agentCreateNoteRequest
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
