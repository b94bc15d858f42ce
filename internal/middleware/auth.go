package middleware

import (
	"net/http"
	"strings"

	"frontdesk/internal/apierror"
	"frontdesk/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey  = "claims"
	SessionKey = "session"
)

// JWTClaims are the custom claims embedded in every access token.
type JWTClaims struct {
	OperatorID string  `json:"operator_id"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	BranchCode *string `json:"branch_code"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route and builds the
// acting operator's session for downstream upstream calls.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Invalid or expired token"))
			return
		}

		operatorID, err := uuid.Parse(claims.OperatorID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Malformed token"))
			return
		}

		sess := &session.Session{
			OperatorID: operatorID,
			Username:   claims.Username,
			Role:       session.Role(claims.Role),
		}
		if claims.BranchCode != nil {
			sess.BranchCode = *claims.BranchCode
		}

		c.Set(ClaimsKey, claims)
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// GetSession retrieves the acting operator's session from the Gin context.
func GetSession(c *gin.Context) *session.Session {
	sess, _ := c.MustGet(SessionKey).(*session.Session)
	return sess
}
