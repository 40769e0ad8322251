package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dafibh/lendora/lendora-backend/docs"
	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"
)

// OpenAPI3Spec is the OpenAPI 3.0 rendition of the generated swagger doc
type OpenAPI3Spec struct {
	OpenAPI    string         `json:"openapi"`
	Info       map[string]any `json:"info"`
	Servers    []Server       `json:"servers"`
	Paths      map[string]any `json:"paths"`
	Components map[string]any `json:"components,omitempty"`
}

// Server represents an OpenAPI 3.0 server
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

const productionServer = "https://api.lendora.app/api/v1"

// rewriteRefs points swagger 2.0 definition refs at components/schemas
func rewriteRefs(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if ref, ok := value.(string); ok && key == "$ref" {
				out[key] = strings.Replace(ref, "#/definitions/", "#/components/schemas/", 1)
				continue
			}
			out[key] = rewriteRefs(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = rewriteRefs(item)
		}
		return out
	}
	return data
}

// convertOperation moves body and formData parameters into a requestBody,
// wraps plain parameter types in a schema and response schemas in content
func convertOperation(op map[string]any) map[string]any {
	out := make(map[string]any, len(op))
	for key, value := range op {
		if key != "parameters" && key != "responses" && key != "consumes" && key != "produces" {
			out[key] = rewriteRefs(value)
		}
	}

	produces := "application/json"
	if list, ok := op["produces"].([]any); ok && len(list) > 0 {
		if s, ok := list[0].(string); ok {
			produces = s
		}
	}

	var params []any
	form := map[string]any{}
	if list, ok := op["parameters"].([]any); ok {
		for _, raw := range list {
			p, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch p["in"] {
			case "body":
				out["requestBody"] = map[string]any{
					"required": p["required"] == true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": rewriteRefs(p["schema"])},
					},
				}
			case "formData":
				prop := map[string]any{"type": p["type"]}
				if p["type"] == "file" {
					prop = map[string]any{"type": "string", "format": "binary"}
				}
				form[p["name"].(string)] = prop
			default:
				params = append(params, convertParameter(p))
			}
		}
	}
	if len(form) > 0 {
		out["requestBody"] = map[string]any{
			"required": true,
			"content": map[string]any{
				"multipart/form-data": map[string]any{
					"schema": map[string]any{"type": "object", "properties": form},
				},
			},
		}
	}
	if len(params) > 0 {
		out["parameters"] = params
	}

	if responses, ok := op["responses"].(map[string]any); ok {
		converted := make(map[string]any, len(responses))
		for code, raw := range responses {
			resp, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			r := map[string]any{"description": resp["description"]}
			if r["description"] == nil {
				status, _ := strconv.Atoi(code)
				r["description"] = http.StatusText(status)
			}
			if schema, ok := resp["schema"]; ok {
				mediaType := produces
				if strings.HasPrefix(code, "4") || strings.HasPrefix(code, "5") {
					mediaType = "application/problem+json"
				}
				r["content"] = map[string]any{mediaType: map[string]any{"schema": rewriteRefs(schema)}}
			}
			converted[code] = r
		}
		out["responses"] = converted
	}
	return out
}

// convertParameter wraps the type fields of a path/query/header parameter
// in a schema object
func convertParameter(p map[string]any) map[string]any {
	out := map[string]any{}
	schema := map[string]any{}
	for key, value := range p {
		switch key {
		case "type", "format", "enum", "default", "minimum", "maximum":
			schema[key] = value
		case "items":
			schema[key] = rewriteRefs(value)
		default:
			out[key] = value
		}
	}
	if len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

// convertSwagger2 turns the swag-generated swagger 2.0 document into OpenAPI 3.0
func convertSwagger2(doc []byte, servers []Server) (*OpenAPI3Spec, error) {
	var swagger2 map[string]any
	if err := json.Unmarshal(doc, &swagger2); err != nil {
		return nil, err
	}

	paths := map[string]any{}
	if raw, ok := swagger2["paths"].(map[string]any); ok {
		for path, item := range raw {
			ops, ok := item.(map[string]any)
			if !ok {
				continue
			}
			converted := make(map[string]any, len(ops))
			for method, op := range ops {
				if m, ok := op.(map[string]any); ok {
					converted[method] = convertOperation(m)
				}
			}
			paths[path] = converted
		}
	}

	components := map[string]any{}
	secDefs, _ := swagger2["securityDefinitions"].(map[string]any)
	if _, ok := secDefs["BearerAuth"]; ok {
		components["securitySchemes"] = map[string]any{
			"BearerAuth": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
		}
	}
	if definitions, ok := swagger2["definitions"].(map[string]any); ok {
		components["schemas"] = rewriteRefs(definitions)
	}

	info, _ := swagger2["info"].(map[string]any)
	return &OpenAPI3Spec{
		OpenAPI:    "3.0.3",
		Info:       info,
		Servers:    servers,
		Paths:      paths,
		Components: components,
	}, nil
}

// ServeOpenAPI3Spec serves the API description as OpenAPI 3.0. The requesting
// host is listed first so the docs work against whichever server served them.
func ServeOpenAPI3Spec(c echo.Context) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		return NewInternalError(c, "Failed to read API description")
	}

	servers := []Server{{URL: c.Scheme() + "://" + c.Request().Host + "/api/v1", Description: "This server"}}
	if servers[0].URL != productionServer {
		servers = append(servers, Server{URL: productionServer, Description: "Production"})
	}

	api, err := convertSwagger2([]byte(doc), servers)
	if err != nil {
		return NewInternalError(c, "Failed to parse API description")
	}
	return c.JSON(http.StatusOK, api)
}
