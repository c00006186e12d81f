package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lesson Package API",
        "description": "Hour-based lesson packages: hour ledger, lifecycle status, overflow resolution and weekly extensions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Packages", "description": "Lesson packages and their hour ledger"},
        {"name": "Lessons", "description": "Lessons consuming package hours"},
        {"name": "Payments", "description": "Package installments"}
    ],
    "paths": {
        "/packages": {
            "post": {
                "tags": ["Packages"],
                "summary": "Create a lesson package",
                "parameters": [
                    {"name": "allow_multiple", "in": "query", "type": "boolean"},
                    {"name": "X-Actor-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePackageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "OVERLAPPING_PACKAGE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/student/{studentId}": {
            "get": {
                "tags": ["Packages"],
                "summary": "List the packages of a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}": {
            "get": {
                "tags": ["Packages"],
                "summary": "Get a package",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Packages"],
                "summary": "Update a package",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "allow_multiple", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePackageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "OVERLAPPING_PACKAGE or LESSON_AFTER_EXPIRY", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Packages"],
                "summary": "Delete a package with its lessons",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/extend": {
            "put": {
                "tags": ["Packages"],
                "summary": "Extend a package by one week",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "EXTENSION_BLOCKED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/cancel-extension": {
            "put": {
                "tags": ["Packages"],
                "summary": "Cancel the last weekly extension",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "NO_EXTENSION_TO_CANCEL or LESSON_AFTER_EXPIRY", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/recompute": {
            "post": {
                "tags": ["Packages"],
                "summary": "Recompute the hour ledger of a package",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "TRANSIENT_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/statement": {
            "get": {
                "tags": ["Packages"],
                "summary": "Download a package statement",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Statement file", "schema": {"type": "file"}}
                }
            }
        },
        "/packages/{id}/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List the lessons of a package",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List package installments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Register an installment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/packages/{id}/payments/{paymentId}": {
            "delete": {
                "tags": ["Payments"],
                "summary": "Delete an installment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "paymentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/lessons": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Schedule a lesson",
                "parameters": [
                    {"name": "X-Actor-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "PACKAGE_OVERFLOW or LESSON_OVERLAP", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/handle-overflow": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Book a lesson that exceeds its package",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveOverflowRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Get a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Lessons"],
                "summary": "Update a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LessonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "PACKAGE_OVERFLOW or LESSON_OVERLAP", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Lessons"],
                "summary": "Delete a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        }
    },
    "definitions": {
        "CreatePackageRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 3},
                "package_type": {"type": "string", "enum": ["fixed", "open"]},
                "start_date": {"type": "string", "format": "date"},
                "total_hours": {"type": "string"},
                "package_cost": {"type": "string"},
                "is_paid": {"type": "boolean"},
                "payment_date": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            },
            "required": ["student_ids", "start_date"]
        },
        "UpdatePackageRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "start_date": {"type": "string", "format": "date"},
                "total_hours": {"type": "string"},
                "package_cost": {"type": "string"},
                "is_paid": {"type": "boolean"},
                "payment_date": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            }
        },
        "CreatePaymentRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "string"},
                "payment_date": {"type": "string", "format": "date"},
                "payment_method": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["amount", "payment_date"]
        },
        "LessonRequest": {
            "type": "object",
            "properties": {
                "professor_id": {"type": "string"},
                "student_id": {"type": "string"},
                "lesson_date": {"type": "string", "format": "date"},
                "start_time": {"type": "string", "example": "16:30"},
                "duration": {"type": "string"},
                "hourly_rate": {"type": "string"},
                "is_package": {"type": "boolean"},
                "package_id": {"type": "string"},
                "is_paid": {"type": "boolean"},
                "payment_date": {"type": "string", "format": "date"},
                "notes": {"type": "string"},
                "allow_overlap": {"type": "boolean"}
            },
            "required": ["professor_id", "student_id", "lesson_date", "duration"]
        },
        "ResolveOverflowRequest": {
            "type": "object",
            "properties": {
                "resolution": {"type": "string", "enum": ["use_single", "use_new_package"]},
                "lesson_id": {"type": "string"},
                "lesson": {"$ref": "#/definitions/LessonRequest"}
            },
            "required": ["resolution", "lesson"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
