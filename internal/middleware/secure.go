package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureOptions returns the security header options. Development mode
// disables the host and SSL checks.
func SecureOptions(isDevelopment bool) secure.Options {
	return secure.Options{
		IsDevelopment:      isDevelopment,
		ContentTypeNosniff: true,
		FrameDeny:          true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
}

// SecureHeaders adds the security headers to every response.
func SecureHeaders(opts secure.Options) gin.HandlerFunc {
	s := secure.New(opts)
	return func(c *gin.Context) {
		if err := s.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		// redirects written by secure end the request
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
