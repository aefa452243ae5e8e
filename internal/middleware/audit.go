package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/services"
)

const maxAuditBody = 2000

// AuditLog records write operations (POST/PUT/PATCH/DELETE) to system_logs.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = maskSensitiveFields(string(bodyBytes))
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)
		message := formatAuditMessage(GetEmail(c), method, c.Request.URL.Path, status)

		var uid *uint
		if userID := GetUserID(c); userID > 0 {
			uid = &userID
		}

		entry := services.LogEntry{
			UserID:    uid,
			RequestID: GetRequestID(c),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   bodySnippet,
				"audit":  true,
			},
		}
		if status >= http.StatusInternalServerError {
			services.LogError(module, action, message, entry)
		} else {
			services.LogInfo(module, action, message, entry)
		}
	}
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/projects/:id/members" + "POST" → module="Projects", action="Create"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")

	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}
	module = titleCase(strings.ReplaceAll(module, "-", " "))

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut, http.MethodPatch:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}

	return module, action
}

// titleCase upper-cases the first letter of each space separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatAuditMessage(email, method, path string, status int) string {
	if email == "" {
		email = "anonymous"
	}
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(email)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" → ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}

// maskSensitiveFields replaces sensitive values in JSON body
func maskSensitiveFields(body string) string {
	sensitiveKeys := []string{"password", "oldPassword", "newPassword", "secret", "token"}
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
	}
	return body
}

// maskJSONValue does a best-effort mask of every JSON string value for key
func maskJSONValue(body, key string) string {
	needle := "\"" + strings.ToLower(key) + "\""
	from := 0
	for {
		idx := strings.Index(strings.ToLower(body[from:]), needle)
		if idx == -1 {
			return body
		}
		idx += from

		colonIdx := strings.Index(body[idx+len(needle):], ":")
		if colonIdx == -1 {
			return body
		}
		valueStart := idx + len(needle) + colonIdx + 1
		for valueStart < len(body) && (body[valueStart] == ' ' || body[valueStart] == '\t') {
			valueStart++
		}
		if valueStart >= len(body) || body[valueStart] != '"' {
			from = idx + len(needle)
			continue
		}

		endQuote := strings.Index(body[valueStart+1:], "\"")
		if endQuote == -1 {
			return body
		}
		body = body[:valueStart+1] + "***" + body[valueStart+1+endQuote:]
		from = valueStart + 1 + len("***") + 1
	}
}
