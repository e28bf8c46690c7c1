// Package docs holds the OpenAPI description of the JSON endpoints,
// registered with swag so gofiber/swagger can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/session/token": {
            "post": {
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "tags": ["session"],
                "summary": "Sign in with an identity token",
                "parameters": [
                    {"description": "ID token", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.signInRequest"}}
                ],
                "responses": {
                    "303": {"description": "See Other"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/me": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/invitations": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["family"],
                "summary": "Invite a family member",
                "parameters": [
                    {"description": "Invitee", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.inviteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/invitations/pending": {
            "get": {
                "produces": ["application/json"],
                "tags": ["family"],
                "summary": "Pending invitations",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Invitation"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/members": {
            "get": {
                "produces": ["application/json"],
                "tags": ["family"],
                "summary": "Family members",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Member"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List documents",
                "parameters": [
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.documentList"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/v1/documents/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Document statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Stats"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/handler.errorEnvelope"}, "request_id": {"type": "string"}}
        },
        "handler.signInRequest": {
            "type": "object",
            "properties": {"next": {"type": "string"}, "token": {"type": "string"}}
        },
        "handler.inviteRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "role": {"type": "string"}}
        },
        "handler.documentList": {
            "type": "object",
            "properties": {
                "documents": {"type": "array", "items": {"$ref": "#/definitions/model.Document"}},
                "pagination": {"$ref": "#/definitions/model.Pagination"}
            }
        },
        "model.User": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "id": {"type": "string"}, "name": {"type": "string"}}
        },
        "model.Identity": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "name": {"type": "string"}}
        },
        "model.Invitation": {
            "type": "object",
            "properties": {
                "_id": {"type": "string"},
                "token": {"type": "string"},
                "invitationToken": {"type": "string"},
                "familyName": {"type": "string"},
                "invitedBy": {"$ref": "#/definitions/model.Identity"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "status": {"type": "string"},
                "invitedAt": {"type": "string"},
                "expiresAt": {"type": "string"}
            }
        },
        "model.Member": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "user": {"$ref": "#/definitions/model.Identity"},
                "role": {"type": "string"},
                "status": {"type": "string"},
                "joinedAt": {"type": "string"}
            }
        },
        "model.Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "category": {"type": "string"},
                "department": {"type": "string"},
                "verificationStatus": {"type": "string"},
                "uploadDate": {"type": "string"},
                "fileSize": {"type": "integer"},
                "mimeType": {"type": "string"},
                "fileUrl": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.Pagination": {
            "type": "object",
            "properties": {"page": {"type": "integer"}, "pages": {"type": "integer"}, "total": {"type": "integer"}}
        },
        "model.Stats": {
            "type": "object",
            "properties": {"expiring": {"type": "integer"}, "recent": {"type": "integer"}, "shared": {"type": "integer"}, "total": {"type": "integer"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Family Vault",
	Description:      "Browser front-end for the family document vault.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
