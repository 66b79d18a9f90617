package model

// Kind identifies which concrete principal variant a reference or token
// points at.  The platform authenticates exactly three kinds of identity:
// library users, member institutions and administrative staff.  A principal
// never spans kinds; each variant lives in its own table with its own
// password hash.
type Kind string

// Principal kinds.
const (
	KindUser        Kind = "user"
	KindInstitution Kind = "institution"
	KindAdmin       Kind = "admin"
)

// Roles carried inside access tokens.  Users are either direct consumers
// ("user") or members of an institution ("student").  Admin accounts are
// either full administrators or staff with reduced privileges.
// Institutions carry no role of their own.
const (
	RoleUser    = "user"
	RoleStudent = "student"
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
)

// Cached subscription status values.  StatusNone means the principal has
// never had (or no longer has) any subscription on record.  The cached
// field on users and institutions is a convenience mirror; the
// subscription_assignments table is authoritative.
const (
	StatusNone    = "none"
	StatusActive  = "active"
	StatusExpired = "expired"
)

// PrincipalRef names exactly one principal row without loading it.  It is
// the value threaded through the refresh ledger and the token claims so
// that storage lookups stay keyed by (kind, id) instead of three nullable
// foreign keys checked at runtime.
type PrincipalRef struct {
	Kind Kind
	ID   uint64
}

// Principal is a tagged union over the three principal variants.  The Kind
// field selects which pointer is set; exactly one of User, Institution or
// Admin is non-nil.  Constructing it through the helpers below keeps that
// invariant.
type Principal struct {
	Kind        Kind
	User        *User
	Institution *Institution
	Admin       *Admin
}

// UserPrincipal wraps a user row as a Principal.
func UserPrincipal(u User) Principal {
	return Principal{Kind: KindUser, User: &u}
}

// InstitutionPrincipal wraps an institution row as a Principal.
func InstitutionPrincipal(i Institution) Principal {
	return Principal{Kind: KindInstitution, Institution: &i}
}

// AdminPrincipal wraps an admin row as a Principal.
func AdminPrincipal(a Admin) Principal {
	return Principal{Kind: KindAdmin, Admin: &a}
}

// Ref returns the (kind, id) reference for the wrapped variant.
func (p Principal) Ref() PrincipalRef {
	return PrincipalRef{Kind: p.Kind, ID: p.ID()}
}

// ID returns the primary key of the wrapped variant, or 0 when the union
// is malformed.
func (p Principal) ID() uint64 {
	switch p.Kind {
	case KindUser:
		if p.User != nil {
			return p.User.ID
		}
	case KindInstitution:
		if p.Institution != nil {
			return p.Institution.ID
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.ID
		}
	}
	return 0
}

// Email returns the login email of the wrapped variant.
func (p Principal) Email() string {
	switch p.Kind {
	case KindUser:
		if p.User != nil {
			return p.User.Email
		}
	case KindInstitution:
		if p.Institution != nil {
			return p.Institution.Email
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.Email
		}
	}
	return ""
}

// Role returns the role encoded into access tokens.  Institutions have no
// role and yield an empty string.
func (p Principal) Role() string {
	switch p.Kind {
	case KindUser:
		if p.User != nil {
			return p.User.Role
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.Role
		}
	}
	return ""
}

// PasswordHash returns the stored bcrypt hash of the wrapped variant.
func (p Principal) PasswordHash() string {
	switch p.Kind {
	case KindUser:
		if p.User != nil {
			return p.User.PasswordHash
		}
	case KindInstitution:
		if p.Institution != nil {
			return p.Institution.PasswordHash
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.PasswordHash
		}
	}
	return ""
}
