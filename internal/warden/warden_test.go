package warden

import "testing"

func TestValidateProfile_NilOrEmptyIsAllowed(t *testing.T) {
	if err := ValidateProfile(nil); err != nil {
		t.Fatalf("nil profile: %v", err)
	}
	empty := ""
	if err := ValidateProfile(&empty); err != nil {
		t.Fatalf("empty profile: %v", err)
	}
}

func TestValidateProfile_KnownProfilesAccepted(t *testing.T) {
	for _, name := range []string{"default", "readonly"} {
		p := name
		if err := ValidateProfile(&p); err != nil {
			t.Fatalf("profile %q: %v", name, err)
		}
	}
}

func TestValidateProfile_UnknownProfileRejected(t *testing.T) {
	p := "super-admin"
	if err := ValidateProfile(&p); err == nil {
		t.Fatalf("expected unknown profile to be rejected")
	}
}
