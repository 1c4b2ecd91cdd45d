// Package docs registers the OpenAPI document of the bounty HTTP API with swag.
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
        "/challenges": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Issue a one-shot nonce for a signer",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ChallengeRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Challenge"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tx/{op}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Submit a signed ledger operation",
                "parameters": [
                    {"type": "string", "enum": ["create_task", "accept_task", "submit_work", "pick_winner", "claim_reward", "refund_escrow", "close_task", "create_mint", "mint_to"], "name": "op", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Envelope"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TxResponse"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "403": {"description": "Permission failure", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Account not found", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "State conflict", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "422": {"description": "Time gate", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "List tasks",
                "parameters": [
                    {"type": "string", "name": "creator", "in": "query"},
                    {"type": "string", "name": "phase", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tasks/{address}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Task with its escrow, resolved against the ledger clock",
                "parameters": [{"type": "string", "name": "address", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tasks/{address}/submissions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Submissions of a task",
                "parameters": [{"type": "string", "name": "address", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tasks/{address}/submissions/{participant}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Submission of one participant",
                "parameters": [
                    {"type": "string", "name": "address", "in": "path", "required": true},
                    {"type": "string", "name": "participant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/tasks/{address}/participations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Participations of a task",
                "parameters": [{"type": "string", "name": "address", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tasks/{address}/qr": {
            "get": {
                "produces": ["image/png"],
                "tags": ["tasks"],
                "summary": "QR code of the task URI",
                "parameters": [
                    {"type": "string", "name": "address", "in": "path", "required": true},
                    {"type": "integer", "name": "size", "in": "query"}
                ],
                "responses": {"200": {"description": "PNG image"}}
            }
        },
        "/accounts/{address}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Raw ledger account",
                "parameters": [{"type": "string", "name": "address", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/balances/{owner}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Native and token balance of an owner",
                "parameters": [
                    {"type": "string", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "name": "mint", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/derive": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Derive the addresses of a task",
                "parameters": [
                    {"type": "string", "name": "creator", "in": "query", "required": true},
                    {"type": "string", "name": "task_id", "in": "query", "required": true},
                    {"type": "string", "name": "participant", "in": "query"},
                    {"type": "string", "name": "mint", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/events": {
            "get": {
                "produces": ["application/json", "text/event-stream"],
                "tags": ["events"],
                "summary": "Recent committed operations",
                "parameters": [
                    {"type": "string", "name": "op", "in": "query"},
                    {"type": "string", "name": "task", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/api-keys": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Issue an operator API key",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/APIKeyRequest"}}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/admin/faucet": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Credit native balance",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/FaucetRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TxResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "APIKeyRequest": {
            "type": "object",
            "properties": {"label": {"type": "string"}}
        },
        "ChallengeRequest": {
            "type": "object",
            "properties": {"signer": {"type": "string"}}
        },
        "Challenge": {
            "type": "object",
            "properties": {
                "nonce": {"type": "string"},
                "signer": {"type": "string"},
                "expires_at": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "signer": {"type": "string"},
                "nonce": {"type": "string"},
                "signature": {"type": "string", "description": "base58 ed25519 signature over bounty-tx:v1\\n{op}\\n{nonce}\\n{payload}"},
                "payload": {"type": "object"}
            }
        },
        "Event": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "op": {"type": "string"},
                "signer": {"type": "string"},
                "task": {"type": "string"},
                "escrow": {"type": "string"},
                "account": {"type": "string"},
                "amount": {"type": "integer"},
                "phase": {"type": "string"},
                "at": {"type": "integer"}
            }
        },
        "TxResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "event": {"$ref": "#/definitions/Event"}
            }
        },
        "FaucetRequest": {
            "type": "object",
            "properties": {
                "owner": {"type": "string"},
                "amount": {"type": "integer"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {
                    "type": "object",
                    "properties": {
                        "error": {"type": "string"},
                        "message": {"type": "string"},
                        "code": {"type": "integer"}
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Bounty Escrow Ledger API",
	Description:      "Task bounties with escrowed token rewards.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
