package validation

import (
	"errors"
	"strings"
	"testing"

	"tracker/internal/models"
)

type signup struct {
	Name    string `form:"user_name" binding:"required,max=5,username"`
	Secret  string `form:"secret" binding:"required"`
	Confirm string `form:"secret_confirm" binding:"required,eqfield=Secret"`
	Note    string
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Fields
}

func TestStructAcceptsValidInput(t *testing.T) {
	if err := Struct(signup{Name: "bob", Secret: "x", Confirm: "x"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestStructUsesFormNamesAndMessages(t *testing.T) {
	fields := fieldsOf(t, Struct(&signup{Name: "", Secret: "x", Confirm: "y"}))

	if fields["user_name"] != "This field is required." {
		t.Errorf("unexpected user_name message %q", fields["user_name"])
	}
	if fields["secret_confirm"] != "The two password fields didn't match." {
		t.Errorf("unexpected secret_confirm message %q", fields["secret_confirm"])
	}
	if _, ok := fields["secret"]; ok {
		t.Errorf("secret should be valid, got %q", fields["secret"])
	}
}

func TestStructMaxCountsCharacters(t *testing.T) {
	if err := Struct(signup{Name: "żółwż", Secret: "x", Confirm: "x"}); err != nil {
		t.Fatalf("five characters should fit, got %v", err)
	}

	fields := fieldsOf(t, Struct(signup{Name: "abcdef", Secret: "x", Confirm: "x"}))
	if fields["user_name"] != "Ensure this value has at most 5 characters." {
		t.Errorf("unexpected message %q", fields["user_name"])
	}
}

func TestStructUsernameCharacters(t *testing.T) {
	for _, name := range []string{"a b", "semi;", "x/y"} {
		fields := fieldsOf(t, Struct(signup{Name: name, Secret: "x", Confirm: "x"}))
		if !strings.HasPrefix(fields["user_name"], "Enter a valid username.") {
			t.Errorf("%q: unexpected message %q", name, fields["user_name"])
		}
	}
	for _, name := range []string{"a.b", "a+b", "a-b", "a_b", "a@b"} {
		if err := Struct(signup{Name: name, Secret: "x", Confirm: "x"}); err != nil {
			t.Errorf("%q: expected valid, got %v", name, err)
		}
	}
}

func TestStructIgnoresNonStructs(t *testing.T) {
	if err := Struct("plain"); err != nil {
		t.Fatalf("expected nil for non-struct, got %v", err)
	}
}
