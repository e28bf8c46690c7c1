package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"familyvault/internal/api/apitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, backend *apitest.Backend, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--api", backend.URL, "--token", "tok"}, args...)
	err := run(context.Background(), full, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

const pending = `{"success":true,"invitations":[
	{"token":"t1","familyName":"Smiths","invitedBy":"Ann","role":"parent"},
	{"invitationToken":"t2","familyName":"Lees","invitedBy":{"name":"Bo"}}
]}`

func TestPending(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.JSON(http.MethodGet, "/family/invitations/pending", 200, pending)

	out, err := runCLI(t, backend, "", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "t1\tSmiths\tfrom Ann\tas parent")
	assert.Contains(t, out, "t2\tLees\tfrom Bo")

	req, ok := backend.Last()
	require.True(t, ok)
	assert.Equal(t, "Bearer tok", req.Auth)
}

func TestDismiss_IsLocalOnly(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.JSON(http.MethodGet, "/family/invitations/pending", 200, pending)

	out, err := runCLI(t, backend, "", "dismiss", "t1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Smiths")
	assert.Contains(t, out, "Lees")
	assert.Contains(t, out, "[info] Invitation dismissed")
	assert.Equal(t, []string{"GET /family/invitations/pending"}, backend.Calls())

	_, err = runCLI(t, backend, "", "dismiss", "nope")
	assert.Error(t, err)
}

func TestDecline_Prompts(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.JSON(http.MethodPost, "/family/reject-invitation/t1", 200, `{"success":true}`)

	out, err := runCLI(t, backend, "n\n", "decline", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Are you sure you want to decline this invitation? [y/N]")
	assert.Contains(t, out, "not declined")
	assert.Empty(t, backend.Calls())

	out, err = runCLI(t, backend, "", "--yes", "decline", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] Invitation declined")
	assert.Equal(t, []string{"POST /family/reject-invitation/t1"}, backend.Calls())
}

func TestInvite(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.JSON(http.MethodGet, "/family/my-groups", 200, `{"success":true,"familyGroups":[{"_id":"g1"}]}`)
	backend.JSON(http.MethodPost, "/family/g1/invite", 200, `{"success":true}`)

	out, err := runCLI(t, backend, "", "invite", "--role", "sibling", "bo@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] Invitation sent to bo@example.com")

	for _, r := range backend.Requests() {
		if r.Path == "/family/g1/invite" {
			assert.JSONEq(t, `{"email":"bo@example.com","role":"sibling"}`, string(r.Body))
		}
	}

	_, err = runCLI(t, backend, "", "invite")
	assert.Error(t, err)
}

func TestDocs(t *testing.T) {
	backend := apitest.NewBackend(t)
	backend.JSON(http.MethodGet, "/documents", 200, `{"success":true,
		"documents":[{"_id":"d1","title":"Passport","category":"identity","fileSize":1048576}],
		"pagination":{"total":1,"page":1,"pages":1}}`)
	backend.JSON(http.MethodGet, "/documents/stats", 200, `{"success":true,"stats":{"total":1,"shared":0,"recent":1,"expiring":0}}`)

	out, err := runCLI(t, backend, "", "docs", "--category", "identity", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "d1\tPassport\tIdentity Documents\t1 MB")
	assert.Contains(t, out, "page 1 of 1 (1 documents)")
	assert.Contains(t, out, "total 1, shared 0, recent 1, expiring 0")

	req := backend.Requests()[0]
	assert.Equal(t, "identity", req.Query.Get("category"))
	assert.False(t, req.Query.Has("search"))
}

func TestUnknownCommand(t *testing.T) {
	backend := apitest.NewBackend(t)
	_, err := runCLI(t, backend, "", "frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}
