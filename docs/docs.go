// Package docs holds the OpenAPI description served at /swagger.
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
        "/api/tasks": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Create a task",
                "parameters": [
                    {"description": "New task", "name": "task", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.createTaskRequest"}},
                    {"type": "string", "description": "Caller's zone for the due-date check", "name": "X-Timezone", "in": "header"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            }
        },
        "/api/tasks/{taskId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Get a task",
                "parameters": [{"type": "string", "description": "Task id", "name": "taskId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            },
            "put": {
                "description": "Only the fields present in the body are overwritten. dueDate null clears it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Update a task",
                "parameters": [
                    {"type": "string", "description": "Task id", "name": "taskId", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "patch", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.updateTaskRequest"}},
                    {"type": "string", "description": "Caller's zone for the due-date check", "name": "X-Timezone", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            },
            "delete": {
                "description": "Returns the deleted task. A second delete of the same id is a 404.",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Delete a task",
                "parameters": [{"type": "string", "description": "Task id", "name": "taskId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            }
        },
        "/api/tasks/{taskId}/status": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Move a task to another status",
                "parameters": [
                    {"type": "string", "description": "Task id", "name": "taskId", "in": "path", "required": true},
                    {"description": "Target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.changeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            }
        },
        "/api/tasks/project/{projectId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "List a project's tasks",
                "parameters": [{"type": "string", "description": "Project id", "name": "projectId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}}}
            }
        },
        "/api/tasks/user/{userId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "List a user's tasks",
                "parameters": [{"type": "string", "description": "Owner id", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}}}
            }
        },
        "/api/projects/{projectId}/progress": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Projects"],
                "summary": "Project progress",
                "parameters": [{"type": "string", "description": "Project id", "name": "projectId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}}}
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness and dependency check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.envelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.envelope"}}
                }
            }
        },
        "/ws": {
            "get": {
                "description": "Upgrades to a WebSocket. Send join-room / leave-room to pick projects.",
                "tags": ["Realtime"],
                "summary": "Subscribe to task events",
                "responses": {}
            }
        }
    },
    "definitions": {
        "handlers.envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "handlers.createTaskRequest": {
            "type": "object",
            "properties": {
                "projectId": {"type": "string"},
                "userId": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "dueDate": {"type": "string", "example": "2026-12-31"}
            }
        },
        "handlers.updateTaskRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string", "enum": ["todo", "in-progress", "done"]},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "dueDate": {"type": "string", "example": "2026-12-31"}
            }
        },
        "handlers.changeStatusRequest": {
            "type": "object",
            "properties": {
                "to": {"type": "string", "enum": ["todo", "in-progress", "done"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Taskboard API",
	Description:      "Task CRUD over REST; live task events over /ws.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
