// Package cookie encodes the authenticated session as the three cookies the
// browser carries between requests: the access token and refresh token on
// HttpOnly Secure cookies, and the access-expiry timestamp on a plain
// cookie so client script can schedule a refresh before the token dies.
package cookie

import (
	"net/http"
	"strconv"
	"strings"
)

// Cookie names. The two token cookies are never readable by client-side
// code; only AccessExpiryName is.
const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"
	AccessExpiryName = "accessExpiry"
)

const sessionPath = "/"

// Cookie is one Set-Cookie entry.
type Cookie struct {
	Name     string
	Value    string
	Secure   bool
	HTTPOnly bool
	Path     string
}

// String renders the Set-Cookie value, attributes in fixed order.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString("=")
	b.WriteString(c.Value)
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	b.WriteString("; Path=")
	b.WriteString(c.Path)
	return b.String()
}

// Set is the cookie bundle attached to one response.
type Set []Cookie

// Apply writes every cookie of the set onto the response.
func (s Set) Apply(w http.ResponseWriter) {
	for _, c := range s {
		w.Header().Add("Set-Cookie", c.String())
	}
}

// Strings renders the set, one Set-Cookie value per entry.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.String()
	}
	return out
}

// Encode bundles a full credential set: both tokens HttpOnly+Secure, the
// expiry timestamp readable by script. accessExpiry is epoch milliseconds.
func Encode(accessToken, refreshToken string, accessExpiry int64) Set {
	return Set{
		{Name: AccessTokenName, Value: accessToken, Secure: true, HTTPOnly: true, Path: sessionPath},
		{Name: RefreshTokenName, Value: refreshToken, Secure: true, HTTPOnly: true, Path: sessionPath},
		{Name: AccessExpiryName, Value: formatExpiry(accessExpiry), Path: sessionPath},
	}
}

// EncodeAccessOnly bundles a refreshed access token and its expiry. The
// refresh cookie is left untouched: the platform just validated it and
// there is no need to resend it.
func EncodeAccessOnly(accessToken string, accessExpiry int64) Set {
	return Set{
		{Name: AccessTokenName, Value: accessToken, Secure: true, HTTPOnly: true, Path: sessionPath},
		{Name: AccessExpiryName, Value: formatExpiry(accessExpiry), Path: sessionPath},
	}
}

// Clear emits all three cookies with empty values and a zero expiry marker
// on the same path, so the client drops them.
func Clear() Set {
	return Set{
		{Name: AccessTokenName, Value: "", Path: sessionPath},
		{Name: RefreshTokenName, Value: "", Path: sessionPath},
		{Name: AccessExpiryName, Value: "0", Path: sessionPath},
	}
}

// Extract finds the named cookie in a raw cookie list. Each entry is split
// on "; " and then each field on "=", and the first non-empty match in list
// order wins. It returns false when the list is empty or the cookie is
// absent.
func Extract(cookies []string, name string) (string, bool) {
	for _, raw := range cookies {
		for _, field := range strings.Split(raw, "; ") {
			key, value, ok := strings.Cut(field, "=")
			if ok && key == name && value != "" {
				return value, true
			}
		}
	}
	return "", false
}

func formatExpiry(millis int64) string {
	return strconv.FormatInt(millis, 10)
}
