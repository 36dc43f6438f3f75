package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	closed   bool
	gotOwner string
	gotDoc   string
	ensure   error
}

func (f *fakeBackend) IssueToken(_ context.Context, userID, email string) (*auth.TokenPair, error) {
	f.gotOwner = userID
	return &auth.TokenPair{
		AccessToken:  "acc-" + userID,
		RefreshToken: "ref-" + email,
		AccessExp:    time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *fakeBackend) EnsureIndexed(_ context.Context, ownerID, documentID string) (*rag.Namespace, error) {
	f.gotOwner, f.gotDoc = ownerID, documentID
	if f.ensure != nil {
		return nil, f.ensure
	}
	return &rag.Namespace{Name: documentID, RecordCount: 12}, nil
}

func (f *fakeBackend) Status(_ context.Context, documentID string) (*models.Document, rag.NamespaceStats, error) {
	return &models.Document{
		ID:          documentID,
		OwnerID:     "u1",
		Name:        "manual.pdf",
		IndexStatus: models.IndexStatusFailed,
		IndexError:  "no extractable text",
	}, rag.NamespaceStats{}, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func run(t *testing.T, f *fakeBackend, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func(context.Context) (backend, error) { return f, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	f := &fakeBackend{}
	out, err := run(t, f, "token", "issue", "--user", "u1", "--email", "a@b.c")
	require.NoError(t, err)

	assert.Contains(t, out, "access_token:  acc-u1")
	assert.Contains(t, out, "refresh_token: ref-a@b.c")
	assert.Contains(t, out, "2030-01-02T03:04:05Z")
	assert.True(t, f.closed)
}

func TestTokenIssueRequiresUser(t *testing.T) {
	f := &fakeBackend{}
	_, err := run(t, f, "token", "issue")
	require.Error(t, err)
	assert.False(t, f.closed, "backend must not be opened when flags are invalid")
}

func TestIndexEnsure(t *testing.T) {
	f := &fakeBackend{}
	out, err := run(t, f, "index", "ensure", "--user", "u1", "--doc", "d1")
	require.NoError(t, err)

	assert.Equal(t, "u1", f.gotOwner)
	assert.Equal(t, "d1", f.gotDoc)
	assert.Contains(t, out, "namespace d1: 12 chunks")
}

func TestIndexEnsureSurfacesIngestionError(t *testing.T) {
	f := &fakeBackend{ensure: rag.ErrParse}
	_, err := run(t, f, "index", "ensure", "--user", "u1", "--doc", "d1")
	assert.True(t, errors.Is(err, rag.ErrParse))
	assert.True(t, f.closed)
}

func TestIndexStatus(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "index", "status", "--doc", "d9")
	require.NoError(t, err)

	assert.Contains(t, out, "document: d9 (manual.pdf)")
	assert.Contains(t, out, "status:   failed")
	assert.Contains(t, out, "error:    no extractable text")
	assert.Contains(t, out, "vectors:  0")
}

func TestOpenFailure(t *testing.T) {
	cmd := newRootCmd(func(context.Context) (backend, error) { return nil, errors.New("mongo down") })
	cmd.SetArgs([]string{"index", "status", "--doc", "d1"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(t.Context())
	assert.EqualError(t, err, "mongo down")
}
