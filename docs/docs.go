// Package docs registers the OpenAPI document served under /swagger.
// Keep it in step with the godoc annotations on the HTTP handlers.
package docs

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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/apidocs.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/apidocs.HealthResponse"}}
                }
            }
        },
        "/messages": {
            "post": {
                "description": "Wraps the payload in an envelope and publishes it to the recipient's topic.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Publish a message",
                "parameters": [
                    {
                        "description": "message",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/apidocs.SendMessageRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/apidocs.SendMessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/apidocs.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/apidocs.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/apidocs.ErrorResponse"}}
                }
            }
        },
        "/replies/{correlationId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Get the reply for a correlation id",
                "parameters": [
                    {
                        "type": "string",
                        "description": "correlation id",
                        "name": "correlationId",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/apidocs.ReplyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/apidocs.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/apidocs.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "apidocs.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "reply not found"}
            }
        },
        "apidocs.HealthResponse": {
            "type": "object",
            "properties": {
                "redis": {"type": "string", "example": "ok"},
                "status": {"type": "string", "example": "ok"}
            }
        },
        "apidocs.ReplyResponse": {
            "type": "object",
            "properties": {
                "correlationId": {"type": "string", "example": "6f1c1c7e-2d4b-4c35-9d7e-3f9b6a0c2a11"},
                "encoding": {"type": "string", "enum": ["text", "base64"], "example": "text"},
                "payload": {"type": "string"},
                "payloadType": {"type": "string", "example": "InvoiceCreated"},
                "recipient": {"type": "string", "example": "relay"},
                "sender": {"type": "string", "example": "billing"},
                "timeSent": {"type": "string"}
            }
        },
        "apidocs.SendMessageRequest": {
            "type": "object",
            "properties": {
                "encoding": {"type": "string", "enum": ["text", "base64"], "example": "text"},
                "payload": {"type": "string", "example": "{\"invoiceId\":42}"},
                "payloadType": {"type": "string", "example": "InvoiceRequested"},
                "recipient": {"type": "string", "example": "billing"},
                "sender": {"type": "string", "example": "ops-console"}
            }
        },
        "apidocs.SendMessageResponse": {
            "type": "object",
            "properties": {
                "correlationId": {"type": "string", "example": "6f1c1c7e-2d4b-4c35-9d7e-3f9b6a0c2a11"},
                "timeSent": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "busrelay API",
	Description:      "Publishes envelopes to bus parties and exposes the replies they send back.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
