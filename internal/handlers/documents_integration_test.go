package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbigger/aiamp/internal/handlers/testutil"
	"github.com/rbigger/aiamp/internal/models"
)

type documentPayload struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	AuthorID   *string `json:"author_id"`
	AuthorName string  `json:"author_name"`
}

type notePayload struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	AuthorName string `json:"author_name"`
	AuthorType string `json:"author_type"`
}

func TestDocumentHandler_CollaboratorCRUD(t *testing.T) {
	env := testutil.NewEnv(t)
	collab := env.CreateAccount("collab@example.com", "CollabPass1!", models.RoleCollaborator, true)
	login := env.Login(collab.Email, "CollabPass1!")

	create := env.Request(http.MethodPost, "/api/collab/documents", map[string]string{
		"title":   "Launch plan",
		"content": "Q3 rollout",
	}, login.AccessToken)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var created struct {
		Document documentPayload `json:"document"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &created)
	require.Equal(t, "Launch plan", created.Document.Title)
	require.Equal(t, collab.Email, created.Document.AuthorName)
	require.NotNil(t, created.Document.AuthorID)
	require.Equal(t, collab.ID, *created.Document.AuthorID)

	get := env.Request(http.MethodGet, "/api/collab/documents/"+created.Document.ID, nil, login.AccessToken)
	require.Equal(t, http.StatusOK, get.Code)

	update := env.Request(http.MethodPut, "/api/collab/documents/"+created.Document.ID, map[string]string{
		"title":   "Launch plan v2",
		"content": "Q3 rollout, revised",
	}, login.AccessToken)
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	var updated struct {
		Document documentPayload `json:"document"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, update).Data, &updated)
	require.Equal(t, "Launch plan v2", updated.Document.Title)

	note := env.Request(http.MethodPost, "/api/collab/notes", map[string]string{
		"document_id": created.Document.ID,
		"content":     "Needs a budget section",
	}, login.AccessToken)
	require.Equal(t, http.StatusCreated, note.Code, note.Body.String())
	var noteData struct {
		Note notePayload `json:"note"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, note).Data, &noteData)
	require.Equal(t, models.AuthorTypeUser, noteData.Note.AuthorType)

	notes := env.Request(http.MethodGet, "/api/collab/notes?document_id="+created.Document.ID, nil, login.AccessToken)
	require.Equal(t, http.StatusOK, notes.Code)
	var notesData struct {
		Notes []notePayload `json:"notes"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, notes).Data, &notesData)
	require.Len(t, notesData.Notes, 1)

	del := env.Request(http.MethodDelete, "/api/collab/documents/"+created.Document.ID, nil, login.AccessToken)
	require.Equal(t, http.StatusOK, del.Code)

	get = env.Request(http.MethodGet, "/api/collab/documents/"+created.Document.ID, nil, login.AccessToken)
	require.Equal(t, http.StatusNotFound, get.Code)
}

func TestDocumentHandler_PlainUserForbidden(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateAccount("member@example.com", "MemberPass1!", models.RoleUser, true)
	login := env.Login(user.Email, "MemberPass1!")

	w := env.Request(http.MethodGet, "/api/collab/documents", nil, login.AccessToken)
	require.Equal(t, http.StatusForbidden, w.Code)
	decoded := testutil.DecodeResponse(t, w)
	require.Equal(t, "FORBIDDEN", decoded.Error.Code)
}

func TestDocumentHandler_Upload(t *testing.T) {
	env := testutil.NewEnv(t)
	collab := env.CreateAccount("collab@example.com", "CollabPass1!", models.RoleCollaborator, true)
	login := env.Login(collab.Email, "CollabPass1!")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "roadmap.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Roadmap\n\n- ship it\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/collab/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded struct {
		Document documentPayload `json:"document"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &uploaded)
	require.Equal(t, "roadmap", uploaded.Document.Title)
	require.Contains(t, uploaded.Document.Content, "ship it")
}

func TestAgentHandler_DocumentsAndNotes(t *testing.T) {
	env := testutil.NewEnv(t)
	key := env.MintAPIKey("researcher",
		models.PermDocumentsRead, models.PermDocumentsWrite,
		models.PermNotesRead, models.PermNotesWrite)

	create := env.AgentRequest(http.MethodPost, "/api/collab/agent/documents", map[string]string{
		"title":   "Findings",
		"content": "Summary of sources",
	}, key)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var created struct {
		Document documentPayload `json:"document"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &created)
	require.Equal(t, "researcher", created.Document.AuthorName)
	require.Nil(t, created.Document.AuthorID)

	note := env.AgentRequest(http.MethodPost, "/api/collab/agent/notes", map[string]string{
		"document_id": created.Document.ID,
		"content":     "Source list verified",
	}, key)
	require.Equal(t, http.StatusCreated, note.Code, note.Body.String())
	var noteData struct {
		Note notePayload `json:"note"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, note).Data, &noteData)
	require.Equal(t, models.AuthorTypeAgent, noteData.Note.AuthorType)
	require.Equal(t, "researcher", noteData.Note.AuthorName)

	list := env.AgentRequest(http.MethodGet, "/api/collab/agent/documents", nil, key)
	require.Equal(t, http.StatusOK, list.Code)
	var listed struct {
		Documents []documentPayload `json:"documents"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, list).Data, &listed)
	require.Len(t, listed.Documents, 1)
}

func TestAgentHandler_ScopeEnforcement(t *testing.T) {
	env := testutil.NewEnv(t)
	readOnly := env.MintAPIKey("observer", models.PermDocumentsRead)

	list := env.AgentRequest(http.MethodGet, "/api/collab/agent/documents", nil, readOnly)
	require.Equal(t, http.StatusOK, list.Code)

	create := env.AgentRequest(http.MethodPost, "/api/collab/agent/documents", map[string]string{
		"title": "Not allowed",
	}, readOnly)
	require.Equal(t, http.StatusForbidden, create.Code)
	require.Contains(t, create.Body.String(), "documents:write")

	missing := env.AgentRequest(http.MethodGet, "/api/collab/agent/documents", nil, "")
	require.Equal(t, http.StatusUnauthorized, missing.Code)
	require.Equal(t, "ApiKey", missing.Header().Get("WWW-Authenticate"))
}
