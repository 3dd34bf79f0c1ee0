package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	testutil "github.com/rbigger/aiamp/internal/database/testutil"
	"github.com/rbigger/aiamp/internal/models"
	apperrors "github.com/rbigger/aiamp/pkg/errors"
)

func TestDocumentCreateAndAttribution(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	human := HumanAuthor("account-1", "writer@example.com")
	doc, err := svc.CreateDocument(context.Background(), "Design Notes", "content", human)
	require.NoError(t, err)
	require.NotNil(t, doc.AuthorID)
	require.Equal(t, "account-1", *doc.AuthorID)
	require.Equal(t, "writer@example.com", doc.AuthorName)

	agentDoc, err := svc.CreateDocument(context.Background(), "Agent Report", "", AgentAuthor("researcher"))
	require.NoError(t, err)
	require.Nil(t, agentDoc.AuthorID)
	require.Equal(t, "researcher", agentDoc.AuthorName)

	_, err = svc.CreateDocument(context.Background(), "  ", "content", human)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}

func TestDocumentUpdateReattributes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	doc, err := svc.CreateDocument(context.Background(), "Draft", "v1", HumanAuthor("account-1", "a@example.com"))
	require.NoError(t, err)

	updated, err := svc.UpdateDocument(context.Background(), doc.ID, "Draft v2", "v2", HumanAuthor("account-2", "b@example.com"))
	require.NoError(t, err)
	require.Equal(t, "Draft v2", updated.Title)
	require.Equal(t, "v2", updated.Content)
	require.Equal(t, "account-2", *updated.AuthorID)
	require.Equal(t, "b@example.com", updated.AuthorName)
}

func TestDocumentDeleteCascadesNotes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	doc, err := svc.CreateDocument(context.Background(), "With Notes", "", HumanAuthor("account-1", "a@example.com"))
	require.NoError(t, err)

	_, err = svc.CreateNote(context.Background(), doc.ID, "first", AgentAuthor("scribe"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(context.Background(), doc.ID))

	var noteCount int64
	require.NoError(t, db.Model(&models.Note{}).Where("document_id = ?", doc.ID).Count(&noteCount).Error)
	require.Zero(t, noteCount)

	require.ErrorIs(t, svc.DeleteDocument(context.Background(), doc.ID), apperrors.ErrNotFound)
}

func TestCreateNoteRequiresExistingDocument(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	_, err = svc.CreateNote(context.Background(), "missing-doc", "content", AgentAuthor("scribe"))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateNoteDefaultsAuthorType(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	doc, err := svc.CreateDocument(context.Background(), "Doc", "", HumanAuthor("account-1", "a@example.com"))
	require.NoError(t, err)

	agentNote, err := svc.CreateNote(context.Background(), doc.ID, "from agent", AgentAuthor("researcher"))
	require.NoError(t, err)
	require.Equal(t, models.AuthorTypeAgent, agentNote.AuthorType)

	humanNote, err := svc.CreateNote(context.Background(), doc.ID, "from human", Author{Name: "a@example.com"})
	require.NoError(t, err)
	require.Equal(t, models.AuthorTypeUser, humanNote.AuthorType)
}

func TestListNotesFiltersByDocument(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	first, err := svc.CreateDocument(context.Background(), "First", "", AgentAuthor("scribe"))
	require.NoError(t, err)
	second, err := svc.CreateDocument(context.Background(), "Second", "", AgentAuthor("scribe"))
	require.NoError(t, err)

	_, err = svc.CreateNote(context.Background(), first.ID, "note a", AgentAuthor("scribe"))
	require.NoError(t, err)
	_, err = svc.CreateNote(context.Background(), second.ID, "note b", AgentAuthor("scribe"))
	require.NoError(t, err)

	all, err := svc.ListNotes(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	filtered, err := svc.ListNotes(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "note a", filtered[0].Content)
}

func TestCreateFromUpload(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db)
	require.NoError(t, err)

	author := HumanAuthor("account-1", "uploader@example.com")

	text, err := svc.CreateFromUpload(context.Background(), "plan.md", "text/markdown", 11, []byte("# The Plan"), author)
	require.NoError(t, err)
	require.Equal(t, "plan", text.Title)
	require.Equal(t, "# The Plan", text.Content)

	binary, err := svc.CreateFromUpload(context.Background(), "report.pdf", "application/pdf", 2048, nil, author)
	require.NoError(t, err)
	require.Equal(t, "report", binary.Title)
	require.Contains(t, binary.Content, "[Uploaded file: report.pdf]")
	require.Contains(t, binary.Content, "application/pdf")

	_, err = svc.CreateFromUpload(context.Background(), "", "", 0, nil, author)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}
