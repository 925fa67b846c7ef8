// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated operator's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access operator information without depending on Gin.
type Identity interface {
	// OperatorID returns the authenticated operator's ID.
	OperatorID() uuid.UUID
	// IsAuthenticated returns true if the operator is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	operatorID    uuid.UUID
	authenticated bool
}

func (i *identity) OperatorID() uuid.UUID {
	return i.operatorID
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if operator info is not present.
func GetIdentity(c *gin.Context) Identity {
	operatorID, ok := c.Get(ContextOperatorIDKey)
	if !ok {
		return &identity{authenticated: false}
	}

	id, ok := operatorID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	return &identity{
		operatorID:    id,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the operator is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
