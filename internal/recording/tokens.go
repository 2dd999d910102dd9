package recording

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DownloadTokenType discriminates file-download claims from identity
// tokens, so an identity token can never be redeemed for file bytes.
const DownloadTokenType = "fileDownload"

// downloadTokenTTL is the fixed validity window for download tokens
const downloadTokenTTL = 10 * time.Minute

var ErrNotDownloadToken = errors.New("not a file download token")

// DownloadClaims is the payload of a signed file-download token
type DownloadClaims struct {
	jwt.RegisteredClaims
	Type     string `json:"_type"`
	Key      string `json:"key"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// TokenIssuer mints short-lived signed claims granting access to a stored
// file. Issuance is stateless; validity is enforced entirely by the
// signature and embedded expiry.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates an issuer signing with the process-wide secret
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue signs a download claim for a single stored file
func (i *TokenIssuer) Issue(key, filename, mimeType string) (string, error) {
	claims := DownloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(downloadTokenTTL)),
		},
		Type:     DownloadTokenType,
		Key:      key,
		Filename: filename,
		MimeType: mimeType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// IssueForRecording mints the raw-file token and, when a processed file
// exists, the processed-file token.
func (i *TokenIssuer) IssueForRecording(rec *Recording) (rawToken, fileToken string, err error) {
	rawToken, err = i.Issue(rec.RawFileKey, rec.RawFileName(), rec.RawMimeType)
	if err != nil {
		return "", "", err
	}

	if rec.FileKey != nil {
		mimeType := ""
		if rec.FileMimeType != nil {
			mimeType = *rec.FileMimeType
		}
		fileToken, err = i.Issue(*rec.FileKey, rec.FileName(), mimeType)
		if err != nil {
			return "", "", err
		}
	}

	return rawToken, fileToken, nil
}

// Verify parses and validates a download token. The file-serving endpoint
// redeems tokens through this.
func (i *TokenIssuer) Verify(tokenString string) (*DownloadClaims, error) {
	claims := &DownloadClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != DownloadTokenType {
		return nil, ErrNotDownloadToken
	}

	return claims, nil
}
