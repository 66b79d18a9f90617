// Package auth implements the token service: issuing, verifying and
// rotating the access/refresh credential pair for all three principal
// kinds. Access tokens are self-verifying JWTs; refresh tokens are opaque
// single-use values recorded in the refresh ledger.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/repository"
	"github.com/iliyamo/digital-library/internal/utils"
)

// RefreshLedger is the durable record of outstanding refresh tokens,
// keyed by token hash. Implemented by repository.TokenRepo.
type RefreshLedger interface {
	Save(ctx context.Context, tokenHash string, ref model.PrincipalRef, expiresAt time.Time) error
	FindValid(ctx context.Context, tokenHash string) (model.PrincipalRef, error)
	Rotate(ctx context.Context, oldHash, newHash string, ref model.PrincipalRef, expiresAt time.Time) error
	Invalidate(ctx context.Context, tokenHash string) error
	InvalidateAll(ctx context.Context, ref model.PrincipalRef) error
}

// PrincipalSource resolves a principal reference to its current row.
// Implemented by repository.Directory.
type PrincipalSource interface {
	Find(ctx context.Context, ref model.PrincipalRef) (model.Principal, error)
}

// Config carries the signing material and lifetimes the service needs.
// It is injected through the constructor so nothing in this package reads
// ambient global state.
type Config struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
}

// TokenPair is one issued session: a short-lived access token and the
// long-lived refresh token that can later be exchanged for the next pair.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Service issues and rotates credential pairs against the refresh ledger.
type Service struct {
	cfg        Config
	ledger     RefreshLedger
	principals PrincipalSource
}

func NewService(cfg Config, ledger RefreshLedger, principals PrincipalSource) *Service {
	return &Service{cfg: cfg, ledger: ledger, principals: principals}
}

// Issue creates a new access/refresh pair for the principal and records
// the refresh token hash in the ledger.
func (s *Service) Issue(ctx context.Context, p model.Principal) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, p.Ref(), p.Role(), s.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.ledger.Save(ctx, utils.HashRefreshRaw(refresh.Raw), p.Ref(), refresh.Exp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess validates an access token with no storage access and
// returns its decoded claims.
func (s *Service) VerifyAccess(raw string) (utils.AccessClaims, error) {
	return utils.ParseAccessToken(s.cfg.JWTSecret, raw)
}

// Rotate exchanges a refresh token for a fresh pair. The principal is
// reloaded from storage so the new access token reflects role and status
// changes since issuance. Consuming the old ledger row and inserting the
// new one happen in one transaction inside the ledger, so a replayed token
// fails with repository.ErrInvalidSession instead of minting a second
// session. A non-empty kind restricts the exchange to tokens bound to that
// principal kind; the check runs before the ledger write, so a token
// presented on the wrong kind's endpoint is refused without being
// consumed.
func (s *Service) Rotate(ctx context.Context, rawRefresh string, kind model.Kind) (model.Principal, TokenPair, error) {
	oldHash := utils.HashRefreshRaw(rawRefresh)

	ref, err := s.ledger.FindValid(ctx, oldHash)
	if err != nil {
		return model.Principal{}, TokenPair{}, err
	}
	if kind != "" && ref.Kind != kind {
		return model.Principal{}, TokenPair{}, repository.ErrInvalidSession
	}

	p, err := s.principals.Find(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, TokenPair{}, repository.ErrInvalidSession
		}
		return model.Principal{}, TokenPair{}, err
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, ref, p.Role(), s.cfg.AccessTTLMin)
	if err != nil {
		return model.Principal{}, TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return model.Principal{}, TokenPair{}, err
	}

	if err := s.ledger.Rotate(ctx, oldHash, utils.HashRefreshRaw(refresh.Raw), ref, refresh.Exp); err != nil {
		return model.Principal{}, TokenPair{}, err
	}
	return p, TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout invalidates the presented refresh token. A token that was never
// in the ledger (or already left it) is not an error; the caller clears
// cookies either way.
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	err := s.ledger.Invalidate(ctx, utils.HashRefreshRaw(rawRefresh))
	if errors.Is(err, repository.ErrInvalidSession) || errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// LogoutAll invalidates every outstanding refresh token of a principal.
func (s *Service) LogoutAll(ctx context.Context, ref model.PrincipalRef) error {
	return s.ledger.InvalidateAll(ctx, ref)
}
