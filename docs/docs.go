package docs

import "github.com/swaggo/swag"

// docTemplate is kept in step with the endpoint annotations by hand;
// go generate replaces this file with swag's output.
const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/jackzampolin/songshelf"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/books": {
            "get": {
                "description": "List every lineage record with its recomputed completeness and consistency",
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "List books",
                "parameters": [
                    {"type": "boolean", "description": "Only INCONSISTENT records", "name": "inconsistent", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.ListBooksResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/books/summary": {
            "get": {
                "description": "Aggregate completeness and consistency across all records",
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Lineage summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/lineage.Stats"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/books/{book_id}": {
            "get": {
                "description": "All lineage records for a book, including suffixed re-runs",
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Get book",
                "parameters": [
                    {"type": "string", "description": "Base book ID", "name": "book_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.GetBookResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/books/{book_id}/reprocess": {
            "post": {
                "description": "Ask the orchestrator to re-run a book and track it until it finishes.\nThe source PDF defaults to the one recorded in the lineage batch.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Reprocess book",
                "parameters": [
                    {"type": "string", "description": "Book ID", "name": "book_id", "in": "path", "required": true},
                    {"description": "Reprocess options", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/endpoints.ReprocessRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/endpoints.ReprocessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/events": {
            "get": {
                "description": "UI events with a sequence number greater than since",
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List events",
                "parameters": [
                    {"type": "integer", "description": "Return events after this sequence number", "name": "since", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.ListEventsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs": {
            "get": {
                "description": "Active reprocessing jobs in submission order",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List active jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.ListJobsResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{book_id}/progress": {
            "get": {
                "description": "Step-level execution progress of an active job",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Job progress",
                "parameters": [
                    {"type": "string", "description": "Book ID", "name": "book_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/tracker.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/lineage/refresh": {
            "post": {
                "description": "Reload the lineage batch from its source. The previous batch is kept on failure.",
                "produces": ["application/json"],
                "tags": ["lineage"],
                "summary": "Refresh lineage",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.RefreshLineageResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/settings": {
            "get": {
                "description": "Effective configuration with defaults and environment overrides.\nSettings change by editing the config file; the server reloads it.",
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "List all settings",
                "parameters": [
                    {"type": "string", "description": "Key prefix filter", "name": "prefix", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.SettingsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/settings/{key}": {
            "get": {
                "description": "Get a single configuration setting by key",
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Get a setting",
                "parameters": [
                    {"type": "string", "description": "Setting key, e.g. polling.interval_ms", "name": "key", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.SettingResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports OK while the HTTP server is responding",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Reports OK when the lineage batch is loaded and the orchestrator is reachable",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Lineage batch and polling scheduler details",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Server status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "config.Entry": {
            "type": "object",
            "properties": {
                "default": {},
                "description": {"type": "string"},
                "env": {"type": "string"},
                "key": {"type": "string"},
                "value": {}
            }
        },
        "endpoints.BookRow": {
            "type": "object",
            "properties": {
                "book_id": {"type": "string"},
                "consistency": {"type": "string", "enum": ["CONSISTENT", "INCONSISTENT"]},
                "drift": {"type": "array", "items": {"type": "string"}},
                "exists_count": {"type": "integer"},
                "local_folder": {"type": "string"},
                "local_pdfs": {"type": "integer"},
                "output_files": {"type": "integer"},
                "percentage": {"type": "number"},
                "row": {"$ref": "#/definitions/events.RowState"},
                "title": {"type": "string"},
                "total_expected": {"type": "integer"},
                "verified_songs": {"type": "integer"}
            }
        },
        "endpoints.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "endpoints.GetBookResponse": {
            "type": "object",
            "properties": {
                "book_id": {"type": "string"},
                "job": {"$ref": "#/definitions/tracker.Job"},
                "records": {"type": "array", "items": {"type": "object"}},
                "stats": {"$ref": "#/definitions/lineage.Stats"}
            }
        },
        "endpoints.HealthResponse": {
            "type": "object",
            "properties": {
                "lineage": {"type": "string"},
                "orchestrator": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "endpoints.ListBooksResponse": {
            "type": "object",
            "properties": {
                "books": {"type": "array", "items": {"$ref": "#/definitions/endpoints.BookRow"}}
            }
        },
        "endpoints.ListEventsResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/events.Event"}},
                "last_seq": {"type": "integer"}
            }
        },
        "endpoints.ListJobsResponse": {
            "type": "object",
            "properties": {
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/tracker.Job"}},
                "state": {"type": "string", "enum": ["idle", "active"]}
            }
        },
        "endpoints.RefreshLineageResponse": {
            "type": "object",
            "properties": {
                "loaded_at": {"type": "string"},
                "records": {"type": "integer"},
                "source": {"type": "string"}
            }
        },
        "endpoints.ReprocessRequest": {
            "type": "object",
            "properties": {
                "force": {"type": "boolean"},
                "source_pdf": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "endpoints.ReprocessResponse": {
            "type": "object",
            "properties": {
                "job": {"$ref": "#/definitions/tracker.Job"},
                "message": {"type": "string"}
            }
        },
        "endpoints.SettingResponse": {
            "type": "object",
            "properties": {
                "entry": {"$ref": "#/definitions/config.Entry"},
                "error": {"type": "string"}
            }
        },
        "endpoints.SettingsResponse": {
            "type": "object",
            "properties": {
                "file": {"type": "string"},
                "settings": {"type": "array", "items": {"$ref": "#/definitions/config.Entry"}}
            }
        },
        "endpoints.StatusResponse": {
            "type": "object",
            "properties": {
                "lineage": {"type": "object"},
                "polling": {"type": "object"},
                "server": {"type": "string"}
            }
        },
        "events.Event": {
            "type": "object",
            "properties": {
                "book_id": {"type": "string"},
                "data": {"type": "object", "additionalProperties": true},
                "seq": {"type": "integer"},
                "time": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "events.RowState": {
            "type": "object",
            "properties": {
                "badge": {"type": "string"},
                "processing": {"type": "boolean"},
                "stalled": {"type": "boolean"}
            }
        },
        "lineage.Stats": {
            "type": "object",
            "properties": {
                "avg_percentage": {"type": "number"},
                "consistent": {"type": "integer"},
                "fully_complete": {"type": "integer"},
                "inconsistent": {"type": "integer"},
                "total": {"type": "integer"},
                "with_local_files": {"type": "integer"}
            }
        },
        "tracker.Job": {
            "type": "object",
            "properties": {
                "book_id": {"type": "string"},
                "execution_ref": {"type": "string"},
                "id": {"type": "string"},
                "source_pdf": {"type": "string"},
                "start_time": {"type": "string"},
                "title": {"type": "string"},
                "use_manual_splits": {"type": "boolean"}
            }
        },
        "tracker.View": {
            "type": "object",
            "properties": {
                "book_id": {"type": "string"},
                "execution_ref": {"type": "string"},
                "last_error": {"type": "string"},
                "status": {"type": "string"},
                "steps": {"type": "array", "items": {"type": "object"}},
                "updated_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Songshelf API",
	Description:      "Lineage monitor and reprocessing tracker for the song extraction pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
