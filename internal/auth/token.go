// Package auth handles the bearer token shared by the backend and its
// clients.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	bearerPrefix = "Bearer "
	tokenLength  = 24 // random bytes
)

// PromptValue is the flag value that asks for the token on the terminal.
const PromptValue = "-"

// ErrEmptyToken is returned when the user enters an empty token.
var ErrEmptyToken = errors.New("token cannot be empty")

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	return token, token != ""
}

// Verify compares a presented token with the expected one in constant time.
func Verify(presented, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// Authorized reports whether r carries the expected bearer token.
func Authorized(r *http.Request, expected string) bool {
	token, ok := BearerToken(r)
	return ok && Verify(token, expected)
}

// PromptToken reads a token from the terminal without echoing it. The
// prompt is written to out.
func PromptToken(out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for a token: stdin is not a terminal")
	}

	fmt.Fprint(out, prompt)
	token, err := term.ReadPassword(fd)
	fmt.Fprintln(out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if strings.TrimSpace(string(token)) == "" {
		return "", ErrEmptyToken
	}
	return strings.TrimSpace(string(token)), nil
}
