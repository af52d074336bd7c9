// Package swagger holds the generated OpenAPI definition served at /swagger.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/auth/login/": {
            "post": {
                "tags": ["auth"],
                "summary": "Login user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "email": {"type": "string"},
                                "password": {"type": "string"}
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "token, refresh token and user profile"},
                    "401": {"description": "invalid credentials"}
                }
            }
        },
        "/api/auth/user/": {
            "get": {
                "tags": ["auth"],
                "summary": "Get current user",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "current user profile"},
                    "401": {"description": "missing or invalid token"}
                }
            }
        },
        "/api/requests/": {
            "get": {
                "tags": ["requests"],
                "summary": "List purchase requests",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "paginated results envelope"}}
            },
            "post": {
                "tags": ["requests"],
                "summary": "Create purchase request",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "title", "in": "formData", "type": "string", "required": true},
                    {"name": "description", "in": "formData", "type": "string", "required": true},
                    {"name": "amount", "in": "formData", "type": "string", "required": true},
                    {"name": "proforma", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "created pending request"},
                    "400": {"description": "validation failure"},
                    "403": {"description": "caller is not staff"}
                }
            }
        },
        "/api/requests/{id}/": {
            "get": {
                "tags": ["requests"],
                "summary": "Get purchase request detail",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "request with ordered approvals"},
                    "404": {"description": "unknown or out-of-scope id"}
                }
            }
        },
        "/api/requests/{id}/approve/": {
            "patch": {
                "tags": ["requests"],
                "summary": "Approve purchase request",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {"type": "object", "properties": {"comment": {"type": "string"}}}
                    }
                ],
                "responses": {
                    "200": {"description": "updated request"},
                    "400": {"description": "lifecycle guard failure"},
                    "403": {"description": "caller is not an approver"}
                }
            }
        },
        "/api/requests/{id}/reject/": {
            "patch": {
                "tags": ["requests"],
                "summary": "Reject purchase request",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {"type": "object", "properties": {"comment": {"type": "string"}}}
                    }
                ],
                "responses": {
                    "200": {"description": "rejected request"},
                    "400": {"description": "lifecycle guard failure"}
                }
            }
        },
        "/api/requests/{id}/submit-receipt/": {
            "post": {
                "tags": ["requests"],
                "summary": "Submit receipt for an approved request",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "receipt", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "request with receipt validation result"},
                    "400": {"description": "receipt already present or request not approved"},
                    "403": {"description": "caller is not the request owner"}
                }
            }
        },
        "/api/dashboard/summary/": {
            "get": {
                "tags": ["dashboard"],
                "summary": "Dashboard summary",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {"200": {"description": "counts, amounts and monthly series"}}
            }
        },
        "/api/audit/": {
            "get": {
                "tags": ["audit"],
                "summary": "Audit trail",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "paginated audit entries"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ProcurePay API",
	Description:      "Purchase request submission and multi-level approval workflow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
