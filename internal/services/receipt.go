package services

import (
	"fmt"
	"time"

	"deathfun-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const receiptIssuer = "deathfun-verifier"

type ReceiptClaims struct {
	Commitment     string `json:"commitment"`
	OverallValid   bool   `json:"overall_valid"`
	MismatchedRows []int  `json:"mismatched_rows,omitempty"`
	jwt.RegisteredClaims
}

// ReceiptService signs verification reports so a result can be shown to a third party
// and checked later without rerunning the verification.
type ReceiptService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewReceiptService(secret []byte, ttl time.Duration) *ReceiptService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &ReceiptService{secret: secret, ttl: ttl, now: time.Now}
}

func (r *ReceiptService) Sign(sessionID, commitment string, report *models.VerificationReport) (string, error) {
	now := r.now()
	claims := ReceiptClaims{
		Commitment:     commitment,
		OverallValid:   report.OverallValid,
		MismatchedRows: report.MismatchedRows,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    receiptIssuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}
	return signed, nil
}

func (r *ReceiptService) Parse(tokenString string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(receiptIssuer),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid receipt")
	}

	return claims, nil
}
