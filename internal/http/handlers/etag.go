package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Versioned entities derive their tag from the stored revision instead of
// hashing the rendered body.
type Versioned interface {
	VersionKey() (id string, revision int)
}

// RespondJSONWithETag writes payload with an ETag and answers 304 when the
// client already holds the current version.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	tag, ok := entityTag(payload)
	if !ok {
		ctx.JSON(status, payload)
		return
	}

	ctx.Header("ETag", tag)
	if matchesAny(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, payload)
}

func entityTag(payload any) (string, bool) {
	if v, ok := payload.(Versioned); ok {
		id, rev := v.VersionKey()
		if id != "" {
			return quote(id + "." + strconv.Itoa(rev)), true
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(b)
	return quote(hex.EncodeToString(sum[:16])), true
}

func quote(s string) string { return `"` + s + `"` }

// matchesAny implements the weak comparison If-None-Match calls for.
func matchesAny(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
