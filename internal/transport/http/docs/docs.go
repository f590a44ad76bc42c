// Package docs registers the OpenAPI document served at /openapi.json.
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
        "/convert": {
            "post": {
                "description": "Convert one or more uploaded images (or zip archives) to the target format. Every item is reported independently.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Convert"],
                "summary": "Convert images",
                "parameters": [
                    {"type": "file", "description": "images or zip archives", "name": "files", "in": "formData", "required": true},
                    {"type": "string", "description": "target format (png, bmp, jpg, jpeg, webp, tga, ico, tiff, gif)", "name": "format", "in": "formData", "required": true},
                    {"type": "integer", "description": "resize width, applied only with height", "name": "width", "in": "formData"},
                    {"type": "integer", "description": "resize height, applied only with width", "name": "height", "in": "formData"},
                    {"type": "number", "description": "brightness factor, 1.0 = unchanged", "name": "brightness", "in": "formData"},
                    {"type": "number", "description": "contrast factor, 1.0 = unchanged", "name": "contrast", "in": "formData"},
                    {"type": "number", "description": "saturation factor, 1.0 = unchanged", "name": "saturation", "in": "formData"},
                    {"type": "boolean", "description": "apply EXIF orientation", "name": "orient", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "per-item report", "schema": {"$ref": "#/definitions/convert.Response"}},
                    "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "413": {"description": "upload too large", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/download/{id}": {
            "get": {
                "description": "Download a converted result by its id.",
                "produces": ["application/octet-stream"],
                "tags": ["Convert"],
                "summary": "Download result",
                "parameters": [
                    {"type": "string", "description": "download id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "converted file"},
                    "404": {"description": "unknown or expired id", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/preview": {
            "post": {
                "description": "Render a PNG thumbnail that fits within the configured preview size.",
                "consumes": ["multipart/form-data"],
                "produces": ["image/png"],
                "tags": ["Convert"],
                "summary": "Preview image",
                "parameters": [
                    {"type": "file", "description": "image", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "PNG thumbnail"},
                    "422": {"description": "undecodable image", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/formats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "List target formats",
                "responses": {"200": {"description": "formats", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}}
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Conversion counters and store usage",
                "responses": {"200": {"description": "stats", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}}
            }
        },
        "/system": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Host CPU and memory snapshot",
                "responses": {"200": {"description": "system info", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}}
            }
        }
    },
    "definitions": {
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "message": {"type": "string"},
                "code": {"type": "integer"}
            }
        },
        "convert.Item": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["completed", "error"]},
                "message": {"type": "string"},
                "output": {"type": "string"},
                "mime": {"type": "string"},
                "size": {"type": "integer"},
                "download_id": {"type": "string"},
                "download_url": {"type": "string"}
            }
        },
        "convert.Response": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/convert.Item"}},
                "succeeded": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "imgconv API",
	Description:      "Raster image format conversion service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
