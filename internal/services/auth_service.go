package services

import (
	"errors"

	"dealdrop/internal/domain"
	"dealdrop/internal/repos"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

// AuthService is the identity gate: it resolves a session token to a
// user and an ordered capability role, and never mutates anything
// outside the session binding done at login/logout.
type AuthService struct {
	Users *repos.UserRepo
}

func (s *AuthService) Login(sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(sid string) error {
	return s.Users.UnbindSession(sid)
}

func (s *AuthService) CurrentUser(sid string) (*domain.User, error) {
	return s.Users.SessionUser(sid)
}

// ResolveRole maps a session token to its capability role. A missing
// or unbound token is simply anonymous; a valid token of a plain user
// resolves to MEMBER, never to an error.
func (s *AuthService) ResolveRole(sid string) (domain.Role, *domain.User) {
	if sid == "" {
		return domain.RoleAnonymous, nil
	}
	u, err := s.Users.SessionUser(sid)
	if err != nil || u == nil {
		return domain.RoleAnonymous, nil
	}
	return u.CapabilityRole(), u
}
