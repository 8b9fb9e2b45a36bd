// Package clientid derives the OAuth2 client id of a token request from HTTP
// Basic credentials and the form-encoded request body.
package clientid

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	basicScheme  = "basic"
	formClientID = "client_id"
)

// ErrInvalidGrant is returned when Basic credentials are present but cannot
// be decoded or carry an empty username.
var ErrInvalidGrant = errors.New("invalid basic credentials")

// Identity is the per-request client identity. Empty strings mean "none".
type Identity struct {
	FromHeader string
	FromBody   string
	// ClientID is empty when neither source yields a value or when both do
	// and they differ.
	ClientID string
	SourceIP string
}

// Resolved reports whether a client id could be determined.
func (i Identity) Resolved() bool { return i.ClientID != "" }

type Resolver struct {
	log *zap.SugaredLogger
}

func NewResolver(log *zap.SugaredLogger) *Resolver {
	return &Resolver{log: log}
}

// Resolve reads the client id from the Authorization header and from body,
// which must already be buffered. The Content-Type of the body is not checked.
func (r *Resolver) Resolve(header http.Header, body []byte, sourceIP string) (Identity, error) {
	id := Identity{SourceIP: sourceIP}

	fromHeader, err := clientIDFromAuthorization(header.Get("Authorization"))
	if err != nil {
		return id, err
	}
	id.FromHeader = fromHeader
	id.FromBody = r.parseForm(string(body))[formClientID]

	switch {
	case id.FromHeader == "":
		id.ClientID = id.FromBody
	case id.FromBody == "":
		id.ClientID = id.FromHeader
	case id.FromHeader == id.FromBody:
		id.ClientID = id.FromHeader
	}
	return id, nil
}

// clientIDFromAuthorization returns the username of Basic credentials, form
// decoded as the client id is encoded that way before Basic encoding.
// Non-Basic schemes and a bare "Basic" yield no id.
func clientIDFromAuthorization(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) < len(basicScheme) || !strings.EqualFold(authorization[:len(basicScheme)], basicScheme) {
		return "", nil
	}
	encoded := strings.TrimSpace(authorization[len(basicScheme):])
	if encoded == "" {
		return "", nil
	}

	// padding is optional
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", ErrInvalidGrant
	}
	username, _, _ := strings.Cut(string(decoded), ":")
	clientID, err := url.QueryUnescape(username)
	if err != nil || clientID == "" {
		return "", ErrInvalidGrant
	}
	return clientID, nil
}

// parseForm decodes key=value pairs separated by '&'. Pairs without '=' are
// ignored and the last occurrence of a key wins. Decoding stops at the first
// malformed escape, keeping what was decoded so far.
func (r *Resolver) parseForm(body string) map[string]string {
	values := map[string]string{}
	for _, token := range strings.Split(body, "&") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		rawKey, rawValue, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err == nil {
			var value string
			if value, err = url.QueryUnescape(rawValue); err == nil {
				values[key] = value
				continue
			}
		}
		if r.log != nil {
			r.log.Infow("Unable to decode URL-encoded string", "error", err)
		}
		break
	}
	return values
}
