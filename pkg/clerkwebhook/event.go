package clerkwebhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is the discriminant Clerk sends in the "type" field.
type EventType string

const (
	UserCreated EventType = "user.created"
	UserUpdated EventType = "user.updated"
	UserDeleted EventType = "user.deleted"

	SessionCreated EventType = "session.created"
	SessionEnded   EventType = "session.ended"
	SessionRemoved EventType = "session.removed"
	SessionRevoked EventType = "session.revoked"

	EmailCreated EventType = "email.created"
	SMSCreated   EventType = "sms.created"

	OrganizationCreated EventType = "organization.created"
	OrganizationUpdated EventType = "organization.updated"
	OrganizationDeleted EventType = "organization.deleted"

	OrganizationMembershipCreated EventType = "organizationMembership.created"
	OrganizationMembershipUpdated EventType = "organizationMembership.updated"
	OrganizationMembershipDeleted EventType = "organizationMembership.deleted"

	OrganizationInvitationCreated  EventType = "organizationInvitation.created"
	OrganizationInvitationAccepted EventType = "organizationInvitation.accepted"
	OrganizationInvitationRevoked  EventType = "organizationInvitation.revoked"

	RoleCreated EventType = "role.created"
	RoleUpdated EventType = "role.updated"
	RoleDeleted EventType = "role.deleted"

	PermissionCreated EventType = "permission.created"
	PermissionUpdated EventType = "permission.updated"
	PermissionDeleted EventType = "permission.deleted"
)

var knownEventTypes = []EventType{
	UserCreated, UserUpdated, UserDeleted,
	SessionCreated, SessionEnded, SessionRemoved, SessionRevoked,
	EmailCreated, SMSCreated,
	OrganizationCreated, OrganizationUpdated, OrganizationDeleted,
	OrganizationMembershipCreated, OrganizationMembershipUpdated, OrganizationMembershipDeleted,
	OrganizationInvitationCreated, OrganizationInvitationAccepted, OrganizationInvitationRevoked,
	RoleCreated, RoleUpdated, RoleDeleted,
	PermissionCreated, PermissionUpdated, PermissionDeleted,
}

// KnownEventTypes returns a copy of every event type this package understands.
func KnownEventTypes() []EventType {
	out := make([]EventType, len(knownEventTypes))
	copy(out, knownEventTypes)
	return out
}

func (t EventType) Known() bool {
	for _, k := range knownEventTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Family is the part before the first dot ("user" for "user.created").
func (t EventType) Family() string {
	s := string(t)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// ParseEventTypes parses a comma-separated list such as "user.created, user.deleted".
// A trailing wildcard ("user.*") expands to every known type of that family.
func ParseEventTypes(csv string) ([]EventType, error) {
	var out []EventType
	seen := map[EventType]struct{}{}
	add := func(t EventType) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, part := range strings.Split(csv, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if family, ok := strings.CutSuffix(p, ".*"); ok {
			matched := false
			for _, k := range knownEventTypes {
				if k.Family() == family {
					add(k)
					matched = true
				}
			}
			if !matched {
				return nil, fmt.Errorf("unknown event family %q", family)
			}
			continue
		}
		t := EventType(p)
		if !t.Known() {
			return nil, fmt.Errorf("unknown event type %q", p)
		}
		add(t)
	}
	return out, nil
}

// HTTPRequestAttributes describes the request that triggered the event on Clerk's side.
type HTTPRequestAttributes struct {
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
}

type EventAttributes struct {
	HTTPRequest *HTTPRequestAttributes `json:"http_request,omitempty"`
}

// Event is a verified webhook delivery. Values are only produced by Verifier.
type Event struct {
	Type       EventType       `json:"type"`
	Data       json.RawMessage `json:"data"`
	Object     string          `json:"object"`
	Timestamp  int64           `json:"timestamp"`
	InstanceID string          `json:"instance_id,omitempty"`
	Attributes EventAttributes `json:"event_attributes,omitempty"`

	// Transport metadata taken from the svix-* headers.
	DeliveryID  string    `json:"-"`
	DeliveredAt time.Time `json:"-"`

	// Raw holds the exact bytes that were verified.
	Raw []byte `json:"-"`
}

// OccurredAt converts the millisecond Clerk timestamp.
func (e Event) OccurredAt() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp).UTC()
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type PhoneNumber struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

type UserData struct {
	ID                    string          `json:"id"`
	Username              *string         `json:"username"`
	FirstName             *string         `json:"first_name"`
	LastName              *string         `json:"last_name"`
	ImageURL              string          `json:"image_url"`
	PrimaryEmailAddressID *string         `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress  `json:"email_addresses"`
	PhoneNumbers          []PhoneNumber   `json:"phone_numbers"`
	ExternalID            *string         `json:"external_id"`
	PublicMetadata        json.RawMessage `json:"public_metadata,omitempty"`
	CreatedAt             int64           `json:"created_at"`
	UpdatedAt             int64           `json:"updated_at"`
}

// PrimaryEmail returns the primary address, or the first one when no primary is set.
func (u UserData) PrimaryEmail() string {
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e.ID == *u.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

type SessionData struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	ClientID     string `json:"client_id"`
	Status       string `json:"status"`
	LastActiveAt int64  `json:"last_active_at"`
	ExpireAt     int64  `json:"expire_at"`
	AbandonAt    int64  `json:"abandon_at"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type OrganizationData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type EmailData struct {
	ID               string `json:"id"`
	ToEmailAddress   string `json:"to_email_address"`
	FromEmailName    string `json:"from_email_name"`
	Subject          string `json:"subject"`
	Slug             string `json:"slug"`
	Status           string `json:"status"`
	UserID           string `json:"user_id"`
	EmailAddressID   string `json:"email_address_id"`
	DeliveredByClerk bool   `json:"delivered_by_clerk"`
}

// DeletedObject is the payload of every *.deleted event.
type DeletedObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

func (e Event) User() (UserData, error) {
	var out UserData
	if e.Type == UserDeleted || e.Type.Family() != "user" {
		return out, fmt.Errorf("event %q does not carry a user", e.Type)
	}
	return out, e.decode(&out)
}

func (e Event) Session() (SessionData, error) {
	var out SessionData
	if e.Type.Family() != "session" {
		return out, fmt.Errorf("event %q does not carry a session", e.Type)
	}
	return out, e.decode(&out)
}

func (e Event) Organization() (OrganizationData, error) {
	var out OrganizationData
	if e.Type == OrganizationDeleted || e.Type.Family() != "organization" {
		return out, fmt.Errorf("event %q does not carry an organization", e.Type)
	}
	return out, e.decode(&out)
}

func (e Event) Email() (EmailData, error) {
	var out EmailData
	if e.Type != EmailCreated {
		return out, fmt.Errorf("event %q does not carry an email", e.Type)
	}
	return out, e.decode(&out)
}

func (e Event) Deleted() (DeletedObject, error) {
	var out DeletedObject
	if !strings.HasSuffix(string(e.Type), ".deleted") {
		return out, fmt.Errorf("event %q is not a deletion", e.Type)
	}
	return out, e.decode(&out)
}

func (e Event) decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %q has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}
