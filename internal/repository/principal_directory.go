package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/digital-library/internal/model"
)

// Directory resolves principal references against the per-kind tables and
// wraps the result in the model.Principal tagged union. It is the single
// place where a (kind, id) pair is turned into a concrete row, so the rest
// of the code never switches on nullable foreign keys.
type Directory struct {
	Users        *UserRepo
	Institutions *InstitutionRepo
	Admins       *AdminRepo
}

func NewDirectory(users *UserRepo, institutions *InstitutionRepo, admins *AdminRepo) *Directory {
	return &Directory{Users: users, Institutions: institutions, Admins: admins}
}

// Find loads the principal row referenced by ref. Missing rows map to
// ErrNotFound regardless of kind.
func (d *Directory) Find(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	switch ref.Kind {
	case model.KindUser:
		u, err := d.Users.GetByID(ctx, ref.ID)
		if err != nil {
			return model.Principal{}, err
		}
		return model.UserPrincipal(u), nil
	case model.KindInstitution:
		i, err := d.Institutions.GetByID(ctx, ref.ID)
		if err != nil {
			return model.Principal{}, err
		}
		return model.InstitutionPrincipal(i), nil
	case model.KindAdmin:
		a, err := d.Admins.GetByID(ctx, ref.ID)
		if err != nil {
			return model.Principal{}, err
		}
		return model.AdminPrincipal(a), nil
	default:
		return model.Principal{}, fmt.Errorf("unknown principal kind %q", ref.Kind)
	}
}

// FindByEmail loads a principal of the given kind by login email.
func (d *Directory) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error) {
	switch kind {
	case model.KindUser:
		u, err := d.Users.GetByEmail(ctx, email)
		if err != nil {
			return model.Principal{}, err
		}
		return model.UserPrincipal(u), nil
	case model.KindInstitution:
		i, err := d.Institutions.GetByEmail(ctx, email)
		if err != nil {
			return model.Principal{}, err
		}
		return model.InstitutionPrincipal(i), nil
	case model.KindAdmin:
		a, err := d.Admins.GetByEmail(ctx, email)
		if err != nil {
			return model.Principal{}, err
		}
		return model.AdminPrincipal(a), nil
	default:
		return model.Principal{}, fmt.Errorf("unknown principal kind %q", kind)
	}
}
