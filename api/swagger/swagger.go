package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timeweaver API",
        "description": "Academic timetable generation and conflict management service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Timetable generation and lifecycle"},
        {"name": "Conflicts", "description": "Conflict detection and resolution"},
        {"name": "Locks", "description": "Slot lock state and substitutes"},
        {"name": "Rules", "description": "Institutional scheduling rules"},
        {"name": "Leaves", "description": "Faculty leave workflow"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate timetables for a semester",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Generation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List timetables",
                "parameters": [
                    {"name": "semesterId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "published", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Fetch a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Published timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List the slots of a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "type": "integer"},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "locked", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/publish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Publish a timetable and freeze its slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/unpublish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Withdraw a published timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "List the conflicts of a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "severity", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/conflicts/summary": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "Summarize the conflicts of a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/conflicts/rescan": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Recompute the conflicts of a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/{conflictId}/resolve": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Mark a conflict as resolved",
                "parameters": [
                    {"name": "conflictId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveConflictRequest"}}
                ],
                "responses": {
                    "204": {"description": "Resolved"},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/workload": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Faculty workload derived from a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/substitutes": {
            "get": {
                "tags": ["Locks"],
                "summary": "Recommend substitute teachers for one slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "slotId", "in": "query", "required": true, "type": "string"},
                    {"name": "departmentId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/lock": {
            "post": {
                "tags": ["Locks"],
                "summary": "Lock specific slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LockSlotsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/unlock": {
            "post": {
                "tags": ["Locks"],
                "summary": "Unlock specific slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LockSlotsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/lock-all": {
            "post": {
                "tags": ["Locks"],
                "summary": "Lock every slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/unlock-all": {
            "post": {
                "tags": ["Locks"],
                "summary": "Unlock every slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/locked": {
            "get": {
                "tags": ["Locks"],
                "summary": "List the locked slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots/lock-statistics": {
            "get": {
                "tags": ["Locks"],
                "summary": "Lock statistics for a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rules": {
            "get": {
                "tags": ["Rules"],
                "summary": "List institutional rules",
                "parameters": [
                    {"name": "ruleType", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rules"],
                "summary": "Create an institutional rule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RuleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate name", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rules/{id}": {
            "get": {
                "tags": ["Rules"],
                "summary": "Fetch an institutional rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Rules"],
                "summary": "Replace an institutional rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Rules"],
                "summary": "Delete an institutional rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/rules/{id}/toggle": {
            "patch": {
                "tags": ["Rules"],
                "summary": "Activate or deactivate a rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ToggleRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/analyze": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Dry-run impact analysis for a faculty absence",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalyzeLeaveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves": {
            "get": {
                "tags": ["Leaves"],
                "summary": "List faculty leaves",
                "parameters": [
                    {"name": "semesterId", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Leaves"],
                "summary": "Propose a faculty leave",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLeaveRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}": {
            "get": {
                "tags": ["Leaves"],
                "summary": "Fetch a faculty leave",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}/approve": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Approve a proposed leave",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}/reject": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Reject a proposed leave",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}/cancel": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Cancel a leave before it is applied",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}/apply": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Execute an approved leave against its timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ApplyLeaveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["semesterId"],
            "properties": {
                "semesterId": {"type": "string"},
                "name": {"type": "string"},
                "numSolutions": {"type": "integer"},
                "baselineTimetableId": {"type": "string"}
            }
        },
        "ResolveConflictRequest": {
            "type": "object",
            "required": ["notes"],
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "LockSlotsRequest": {
            "type": "object",
            "required": ["slotIds"],
            "properties": {
                "slotIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "RuleRequest": {
            "type": "object",
            "required": ["name", "ruleType"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "ruleType": {"type": "string"},
                "configuration": {"type": "object"},
                "isHardConstraint": {"type": "boolean"},
                "weight": {"type": "number"},
                "appliesToDepartments": {"type": "array", "items": {"type": "string"}},
                "appliesToYears": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "ToggleRuleRequest": {
            "type": "object",
            "required": ["active"],
            "properties": {
                "active": {"type": "boolean"}
            }
        },
        "AnalyzeLeaveRequest": {
            "type": "object",
            "required": ["facultyId", "timetableId"],
            "properties": {
                "facultyId": {"type": "string"},
                "timetableId": {"type": "string"}
            }
        },
        "CreateLeaveRequest": {
            "type": "object",
            "required": ["facultyId", "semesterId", "startDate", "endDate", "leaveType", "strategy"],
            "properties": {
                "facultyId": {"type": "string"},
                "semesterId": {"type": "string"},
                "timetableId": {"type": "string"},
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "leaveType": {"type": "string"},
                "strategy": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "ApplyLeaveRequest": {
            "type": "object",
            "properties": {
                "appliedBy": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
