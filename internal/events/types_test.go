package events

import "testing"

func TestSubjectFor(t *testing.T) {
	cases := map[string]string{
		"user.created":                   "clerk.webhook.user.created",
		"organizationMembership.deleted": "clerk.webhook.organizationMembership.deleted",
		"":                               "clerk.webhook.unknown",
		"bad>type *":                     "clerk.webhook.bad_type__",
	}
	for in, want := range cases {
		if got := SubjectFor(in); got != want {
			t.Fatalf("SubjectFor(%q) = %q, want %q", in, got, want)
		}
	}
}
