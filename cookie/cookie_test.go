package cookie

import (
	"net/http/httptest"
	"testing"
)

func TestEncodeFormat(t *testing.T) {
	set := Encode("abc", "def", 1700000000000)

	want := []string{
		"accessToken=abc; Secure; HttpOnly; Path=/",
		"refreshToken=def; Secure; HttpOnly; Path=/",
		"accessExpiry=1700000000000; Path=/",
	}
	got := set.Strings()
	if len(got) != len(want) {
		t.Fatalf("expected %d cookies, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cookie %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEncodeExtractRoundTrip(t *testing.T) {
	set := Encode("acc-token", "ref-token", 42)
	raw := set.Strings()

	tests := []struct {
		name, want string
	}{
		{AccessTokenName, "acc-token"},
		{RefreshTokenName, "ref-token"},
		{AccessExpiryName, "42"},
	}
	for _, tc := range tests {
		got, ok := Extract(raw, tc.name)
		if !ok {
			t.Fatalf("cookie %q absent after encode", tc.name)
		}
		if got != tc.want {
			t.Fatalf("Extract(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEncodeAccessOnlyLeavesRefreshUntouched(t *testing.T) {
	set := EncodeAccessOnly("new-access", 99)

	if len(set) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(set))
	}
	if _, ok := Extract(set.Strings(), RefreshTokenName); ok {
		t.Fatal("refresh cookie must not be resent on refresh")
	}
	if got, _ := Extract(set.Strings(), AccessTokenName); got != "new-access" {
		t.Fatalf("access cookie = %q", got)
	}
	if got, _ := Extract(set.Strings(), AccessExpiryName); got != "99" {
		t.Fatalf("expiry cookie = %q", got)
	}
}

func TestClearDropsAllThree(t *testing.T) {
	raw := Clear().Strings()

	want := []string{
		"accessToken=; Path=/",
		"refreshToken=; Path=/",
		"accessExpiry=0; Path=/",
	}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("cleared cookie %d = %q, want %q", i, raw[i], want[i])
		}
	}

	if _, ok := Extract(raw, AccessTokenName); ok {
		t.Fatal("cleared access token should extract as absent")
	}
	if _, ok := Extract(raw, RefreshTokenName); ok {
		t.Fatal("cleared refresh token should extract as absent")
	}
	if got, ok := Extract(raw, AccessExpiryName); !ok || got != "0" {
		t.Fatalf("cleared expiry = %q, %v", got, ok)
	}
}

func TestExtractFromCookieList(t *testing.T) {
	cookies := []string{
		"accessToken=abc; Secure",
		"refreshToken=def; Secure",
	}

	got, ok := Extract(cookies, "accessToken")
	if !ok || got != "abc" {
		t.Fatalf("Extract(accessToken) = %q, %v", got, ok)
	}
	got, ok = Extract(cookies, "refreshToken")
	if !ok || got != "def" {
		t.Fatalf("Extract(refreshToken) = %q, %v", got, ok)
	}
}

func TestExtractFirstMatchWins(t *testing.T) {
	cookies := []string{
		"accessToken=first; Secure",
		"accessToken=second; Secure",
	}
	if got, _ := Extract(cookies, "accessToken"); got != "first" {
		t.Fatalf("expected order-preserving first match, got %q", got)
	}
}

func TestExtractAbsent(t *testing.T) {
	if _, ok := Extract(nil, "accessToken"); ok {
		t.Fatal("expected absent for nil list")
	}
	if _, ok := Extract([]string{"other=x"}, "accessToken"); ok {
		t.Fatal("expected absent for missing cookie")
	}
	// A name match with an empty value is absent, not an empty credential.
	if _, ok := Extract([]string{"accessToken=; Path=/"}, "accessToken"); ok {
		t.Fatal("expected absent for empty value")
	}
}

func TestApplyWritesSetCookieHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Encode("a", "r", 7).Apply(rec)

	headers := rec.Header().Values("Set-Cookie")
	if len(headers) != 3 {
		t.Fatalf("expected 3 Set-Cookie headers, got %d", len(headers))
	}
	if headers[0] != "accessToken=a; Secure; HttpOnly; Path=/" {
		t.Fatalf("unexpected first header %q", headers[0])
	}
}
