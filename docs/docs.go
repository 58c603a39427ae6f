// Package docs holds the OpenAPI document served at /swagger/. It follows
// the layout of `swag init` output and is kept in step with the handler
// annotations by hand.
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
        "/ping": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "pong", "schema": {"type": "string"}}
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "description": "Exchanges the administrator credentials for a bearer token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "credentials", "in": "body", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LoginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/v1/products": {
            "get": {
                "description": "Returns every product. The listing is cached until the next write.",
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List products",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.ListResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Code and name are required; numeric fields must not be negative.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Add a product",
                "parameters": [
                    {"description": "New product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Product"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/product.ProductResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/v1/products/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get a product",
                "parameters": [
                    {"type": "string", "description": "Product code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["products"],
                "summary": "Delete a product",
                "parameters": [
                    {"type": "string", "description": "Product code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Merges the given fields into the product. Numbers may be sent as strings.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Update product fields",
                "parameters": [
                    {"type": "string", "description": "Product code", "name": "code", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "fields", "in": "body", "required": true, "schema": {"type": "object", "additionalProperties": true}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.ProductResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/v1/update-sessions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Opens a guided update on the current product listing.",
                "produces": ["application/json"],
                "tags": ["update-sessions"],
                "summary": "Start an update session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/workflow.View"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/v1/update-sessions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["update-sessions"],
                "summary": "Show an update session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/workflow.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["update-sessions"],
                "summary": "Discard an update session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/v1/update-sessions/{id}/events": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Rejected events return 400 and leave the session unchanged.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["update-sessions"],
                "summary": "Push an event into an update session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {"description": "Event", "name": "event", "in": "body", "required": true, "schema": {"$ref": "#/definitions/workflow.Event"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/workflow.View"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "auth.LoginRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string", "example": "secret"},
                "username": {"type": "string", "example": "admin"}
            }
        },
        "auth.LoginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "token_type": {"type": "string", "example": "Bearer"}
            }
        },
        "domain.ErrorResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string", "example": "NOT_FOUND"},
                "code": {"type": "integer", "example": 404},
                "message": {"type": "string", "example": "not found: P1"}
            }
        },
        "domain.Notice": {
            "type": "object",
            "properties": {
                "level": {"type": "string", "example": "success"},
                "message": {"type": "string", "example": "Product P1 updated"}
            }
        },
        "domain.Product": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "stock": {"type": "integer"},
                "stock_max": {"type": "integer"},
                "stock_min": {"type": "integer"}
            }
        },
        "product.ListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/domain.Product"}},
                "notice": {"$ref": "#/definitions/domain.Notice"}
            }
        },
        "product.ProductResponse": {
            "type": "object",
            "properties": {
                "notice": {"$ref": "#/definitions/domain.Notice"},
                "product": {"$ref": "#/definitions/domain.Product"}
            }
        },
        "workflow.Event": {
            "type": "object",
            "properties": {
                "field": {"type": "string", "example": "stock"},
                "fields": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string", "example": "Widget"},
                "type": {"type": "string", "example": "enter_value"},
                "value": {"type": "string", "example": "7"}
            }
        },
        "workflow.View": {
            "type": "object",
            "properties": {
                "allowed_events": {"type": "array", "items": {"type": "string"}},
                "current": {"$ref": "#/definitions/domain.Product"},
                "id": {"type": "string"},
                "notice": {"$ref": "#/definitions/domain.Notice"},
                "options": {"type": "array", "items": {"type": "string"}},
                "pending_values": {"type": "object", "additionalProperties": true},
                "selected_fields": {"type": "array", "items": {"type": "string"}},
                "state": {"type": "string"}
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
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "stockdash API",
	Description:      "Product inventory administration: listing, add, partial update, delete and guided update sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
