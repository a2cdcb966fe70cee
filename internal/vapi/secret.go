package vapi

import (
	"crypto/subtle"
	"net/http"

	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const SecretHeader = "x-vapi-secret"

// compare is swapped in tests to observe that it always runs.
var compare = subtle.ConstantTimeCompare

// ValidSecret reports whether provided matches expected. Both must be
// non-empty and of equal length. The byte comparison runs on every call,
// against a same-length stand-in when lengths differ, so the work done does
// not depend on how much of the input matches.
func ValidSecret(provided, expected string) bool {
	p := []byte(provided)
	e := []byte(expected)

	sameLen := subtle.ConstantTimeEq(int32(len(p)), int32(len(e)))
	if sameLen != 1 {
		e = make([]byte, len(p))
	}
	equal := compare(p, e)

	nonEmpty := 0
	if len(p) > 0 && len(expected) > 0 {
		nonEmpty = 1
	}
	return equal&sameLen&nonEmpty == 1
}

// RequireSecret rejects requests without the shared secret before any body is read.
func RequireSecret(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ValidSecret(c.GetHeader(SecretHeader), expected) {
			logger.FromGin(c).Warn("voice platform request rejected: bad secret")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
