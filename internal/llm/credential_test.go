package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCredential(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		credential string
		kind       FailureKind
	}{
		{name: "empty", credential: "", kind: FailureMissingCredential},
		{name: "too short", credential: "abc123", kind: FailureMalformedCredential},
		{name: "whitespace", credential: "AIza test key 0123456789", kind: FailureMalformedCredential},
		{name: "too long", credential: strings.Repeat("a", 129), kind: FailureMalformedCredential},
		{name: "valid", credential: testCredential},
		{name: "minimum length", credential: strings.Repeat("k", 20)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			failure := ValidateCredential(tc.credential)
			if tc.kind == 0 {
				if failure != nil {
					t.Fatalf("expected valid credential, got %v", failure)
				}
				return
			}
			if failure == nil || failure.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %v", tc.kind, failure)
			}
			if failure.CredentialRejected() {
				t.Fatalf("structural failures must not carry the rejection sentinel")
			}
		})
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	text := "request with " + testCredential + " failed; retry " + testCredential
	redacted := Redact(text, testCredential)
	if strings.Contains(redacted, testCredential) {
		t.Fatalf("expected credential removed, got %q", redacted)
	}
	if strings.Count(redacted, redactedCredential) != 2 {
		t.Fatalf("expected two redactions, got %q", redacted)
	}
	if Redact(text, "") != text {
		t.Fatalf("expected empty credential to leave text unchanged")
	}
}

func TestIsCredentialRejected(t *testing.T) {
	t.Parallel()

	rejected := classifyStatus(401, "", errors.New("unauthorized"))
	if !IsCredentialRejected(rejected) {
		t.Fatalf("expected failure to be recognised as rejection")
	}
	if rejected.Error() != CredentialRejectedMessage {
		t.Fatalf("expected sentinel text, got %q", rejected.Error())
	}
	if !IsCredentialRejected(errors.New(CredentialRejectedMessage)) {
		t.Fatalf("expected bare sentinel error to match")
	}
	if IsCredentialRejected(classifyStatus(429, "", nil)) {
		t.Fatalf("rate limiting must not match the sentinel")
	}
	if IsCredentialRejected(nil) {
		t.Fatalf("nil must not match the sentinel")
	}
}

func TestRecoverResultConvertsPanic(t *testing.T) {
	t.Parallel()

	result := func() (result Result) {
		defer recoverResult(&result)
		panic("boom")
	}()

	if result.OK() || result.Failure.Kind != FailureTransport {
		t.Fatalf("expected transport failure after panic, got %#v", result)
	}
}
