package utils

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimUserID    = "user_id"
	claimUserName  = "user_name"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimTokenType = "token_type"

	accessTokenType = "access"
)

var bearerPattern = regexp.MustCompile(`^Bearer ([^ ]+)$`)

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    int64
	UserName  string
	IssuedAt  int64
	ExpiresAt int64
	TokenType string
}

// TokenVerifier checks bearer tokens issued by the external authentication
// authority against its public key. It never issues tokens.
type TokenVerifier struct {
	parser    *jwt.Parser
	publicKey *rsa.PublicKey

	// Now is the clock used for the validity window; tests override it.
	Now func() time.Time
}

func NewTokenVerifier(publicKeyPEM []byte, algorithm string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed parsing token verification key: %w", err)
	}

	// The time window and claim types are validated manually below; the
	// parser only settles the signature and algorithm.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{algorithm}),
		jwt.WithJSONNumber(),
		jwt.WithoutClaimsValidation(),
	)

	return &TokenVerifier{parser: parser, publicKey: key, Now: time.Now}, nil
}

// Verify validates the Authorization header value against claimedUserID and
// returns the claim set. Every failure mode is unauthorized; details go to
// the log, never to the caller.
func (v *TokenVerifier) Verify(authHeader string, claimedUserID int64) (*Claims, error) {
	if authHeader == "" {
		logger.Warn("token_missing", map[string]interface{}{"claimed_user_id": claimedUserID})
		return nil, apperr.ErrUnauthorized
	}

	match := bearerPattern.FindStringSubmatch(authHeader)
	if match == nil {
		logger.Warn("token_malformed_header", map[string]interface{}{"claimed_user_id": claimedUserID})
		return nil, apperr.ErrUnauthorized
	}

	token, err := v.parser.Parse(match[1], func(token *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		logger.Warn("token_invalid_signature", map[string]interface{}{
			"claimed_user_id": claimedUserID,
		})
		return nil, apperr.ErrUnauthorized
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.ErrUnauthorized
	}

	claims, err := extractClaims(mapClaims)
	if err != nil {
		logger.Warn("token_invalid_claims", map[string]interface{}{
			"claimed_user_id": claimedUserID,
			"reason":          err.Error(),
		})
		return nil, apperr.ErrUnauthorized
	}

	if claims.UserID != claimedUserID {
		logger.Warn("token_user_mismatch", map[string]interface{}{
			"token_user_id":   claims.UserID,
			"claimed_user_id": claimedUserID,
		})
		return nil, apperr.ErrUnauthorized
	}

	now := v.Now().Unix()
	if now > claims.ExpiresAt {
		logger.Warn("token_expired", map[string]interface{}{"user_id": claims.UserID})
		return nil, apperr.ErrUnauthorized
	}
	if now < claims.IssuedAt {
		logger.Warn("token_issued_in_future", map[string]interface{}{
			"user_id": claims.UserID,
			"hint":    "possible clock skew between services",
		})
		return nil, apperr.ErrUnauthorized
	}

	if claims.TokenType != accessTokenType {
		logger.Warn("token_wrong_type", map[string]interface{}{
			"user_id":    claims.UserID,
			"token_type": claims.TokenType,
		})
		return nil, apperr.ErrUnauthorized
	}

	return claims, nil
}

// extractClaims enforces presence and concrete value types for every
// required claim. A string where an integer belongs is a rejection, not a
// coercion.
func extractClaims(mapClaims jwt.MapClaims) (*Claims, error) {
	userID, err := integerClaim(mapClaims, claimUserID)
	if err != nil {
		return nil, err
	}
	userName, err := stringClaim(mapClaims, claimUserName)
	if err != nil {
		return nil, err
	}
	issuedAt, err := integerClaim(mapClaims, claimIssuedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := integerClaim(mapClaims, claimExpiresAt)
	if err != nil {
		return nil, err
	}
	tokenType, err := stringClaim(mapClaims, claimTokenType)
	if err != nil {
		return nil, err
	}

	return &Claims{
		UserID:    userID,
		UserName:  userName,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		TokenType: tokenType,
	}, nil
}

func integerClaim(mapClaims jwt.MapClaims, name string) (int64, error) {
	raw, exists := mapClaims[name]
	if !exists {
		return 0, fmt.Errorf("missing claim %q", name)
	}
	number, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("claim %q is not a number", name)
	}
	value, err := number.Int64()
	if err != nil {
		return 0, fmt.Errorf("claim %q is not an integer", name)
	}
	return value, nil
}

func stringClaim(mapClaims jwt.MapClaims, name string) (string, error) {
	raw, exists := mapClaims[name]
	if !exists {
		return "", fmt.Errorf("missing claim %q", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("claim %q is not a string", name)
	}
	return value, nil
}
