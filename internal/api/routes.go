package api

import "net/http"

// Operation is a logical backend action and the ordered candidate paths
// that may serve it. Newer deployments come first. Paths are templates
// whose {placeholders} are filled from Request.Params.
type Operation struct {
	Name   string
	Method string
	Paths  []string
}

var (
	ListMyGroups = Operation{
		Name:   "listMyGroups",
		Method: http.MethodGet,
		Paths:  []string{"/family/my-groups"},
	}
	CreateGroup = Operation{
		Name:   "createGroup",
		Method: http.MethodPost,
		Paths:  []string{"/family/create"},
	}
	Invite = Operation{
		Name:   "invite",
		Method: http.MethodPost,
		Paths:  []string{"/family/{groupId}/invite"},
	}
	ListPendingInvitations = Operation{
		Name:   "listPendingInvitations",
		Method: http.MethodGet,
		Paths:  []string{"/family/invitations/pending", "/family/invitations", "/family/pending"},
	}
	AcceptInvitation = Operation{
		Name:   "acceptInvitation",
		Method: http.MethodPost,
		Paths: []string{
			"/family/accept-invitation/{token}",
			"/family/invitations/accept/{token}",
			"/family/invitations/{token}/accept",
		},
	}
	RejectInvitation = Operation{
		Name:   "rejectInvitation",
		Method: http.MethodPost,
		Paths: []string{
			"/family/reject-invitation/{token}",
			"/family/invitations/decline/{token}",
			"/family/invitations/{token}/decline",
		},
	}
	GetInvitation = Operation{
		Name:   "getInvitation",
		Method: http.MethodGet,
		Paths:  []string{"/family/invitation/{token}", "/family/invitations/{token}"},
	}
	ListMembers = Operation{
		Name:   "listMembers",
		Method: http.MethodGet,
		Paths:  []string{"/family/my-groups", "/family/members", "/family"},
	}
	ListDocuments = Operation{
		Name:   "listDocuments",
		Method: http.MethodGet,
		Paths:  []string{"/documents"},
	}
	DocumentStats = Operation{
		Name:   "documentStats",
		Method: http.MethodGet,
		Paths:  []string{"/documents/stats"},
	}
	GetDocument = Operation{
		Name:   "getDocument",
		Method: http.MethodGet,
		Paths:  []string{"/documents/{id}"},
	}
	UploadDocument = Operation{
		Name:   "uploadDocument",
		Method: http.MethodPost,
		Paths:  []string{"/documents/upload"},
	}
	UpdateDocument = Operation{
		Name:   "updateDocument",
		Method: http.MethodPut,
		Paths:  []string{"/documents/{id}"},
	}
	DeleteDocument = Operation{
		Name:   "deleteDocument",
		Method: http.MethodDelete,
		Paths:  []string{"/documents/{id}"},
	}
	DownloadDocument = Operation{
		Name:   "downloadDocument",
		Method: http.MethodGet,
		Paths:  []string{"/documents/{id}/download"},
	}
)
