package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallerKeyPrefersActorID(t *testing.T) {
	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set(headerActorID, "farmer-1")
	req.RemoteAddr = "10.0.0.7:5113"
	assert.Equal(t, "actor:farmer-1", callerKey(req))
}

func TestCallerKeyFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/products", nil)
	req.RemoteAddr = "10.0.0.7:5113"
	assert.Equal(t, "addr:10.0.0.7:5113", callerKey(req))
}
