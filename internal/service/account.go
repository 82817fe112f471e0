package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// AccountConfig carries the session and hashing settings.
type AccountConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int
}

// AccountService handles sessions, client profiles and user accounts.
type AccountService struct {
	db        *database.DB
	repos     Repos
	publisher queue.Publisher
	cfg       AccountConfig
}

func NewAccountService(db *database.DB, r Repos, pub queue.Publisher, cfg AccountConfig) *AccountService {
	if db == nil || r.Users == nil || r.Sessions == nil || r.Clients == nil {
		panic("nil dependency passed to NewAccountService")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AccountService{db: db, repos: r, publisher: pub, cfg: cfg}
}

// Session is an issued login.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      model.User    `json:"user"`
	Client    *model.Client `json:"client,omitempty"`
}

// Profile is the current user with its client profile, if any.
type Profile struct {
	User   model.User    `json:"user"`
	Client *model.Client `json:"client,omitempty"`
}

// Login checks the credentials and opens a server-side session.
func (s *AccountService) Login(ctx context.Context, cmd Login) (Session, error) {
	if err := check(cmd); err != nil {
		return Session{}, err
	}
	u, err := s.repos.Users.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperror.Unauthorized("invalid email or password")
	}
	if err != nil {
		return Session{}, dbErr(err, "user")
	}
	if !utils.VerifyPassword(u.PasswordHash, cmd.Password) {
		return Session{}, apperror.Unauthorized("invalid email or password")
	}
	if !u.IsActive {
		return Session{}, apperror.Unauthorized("account is inactive")
	}
	tok, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.SessionTTL)
	if err != nil {
		return Session{}, apperror.Infra("could not issue session", err)
	}
	if err := s.repos.Sessions.Store(ctx, u.ID, utils.HashSessionID(tok.SID), tok.Exp); err != nil {
		return Session{}, dbErr(err, "session")
	}
	out := Session{Token: tok.Token, ExpiresAt: tok.Exp, User: u}
	if c, err := s.repos.Clients.GetByUserID(ctx, u.ID); err == nil {
		out.Client = &c
	}
	return out, nil
}

// Authenticate verifies a raw session token against its stored session
// and returns the caller with the session id.
func (s *AccountService) Authenticate(ctx context.Context, raw string) (Actor, string, error) {
	claims, err := utils.ParseSessionToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return Actor{}, "", apperror.Unauthorized("invalid or expired session")
	}
	uid, _ := claims.UserID()
	stored, err := s.repos.Sessions.Validate(ctx, utils.HashSessionID(claims.SID))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && stored != uid) {
		return Actor{}, "", apperror.Unauthorized("session revoked or expired")
	}
	if err != nil {
		return Actor{}, "", dbErr(err, "session")
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return Actor{}, "", apperror.Unauthorized("invalid session role")
	}
	return Actor{UserID: uid, Role: role}, claims.SID, nil
}

// Logout revokes the session identified by sid.
func (s *AccountService) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return apperror.Unauthorized("no active session")
	}
	return dbErr(s.repos.Sessions.RevokeByHash(ctx, utils.HashSessionID(sid)), "session")
}

// PurgeSessions deletes sessions that ended before cutoff.
func (s *AccountService) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repos.Sessions.PurgeExpired(ctx, cutoff)
	return n, dbErr(err, "session")
}

func (s *AccountService) Me(ctx context.Context, actor Actor) (Profile, error) {
	u, err := s.repos.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return Profile{}, dbErr(err, "user")
	}
	p := Profile{User: u}
	c, err := s.repos.Clients.GetByUserID(ctx, u.ID)
	switch {
	case err == nil:
		p.Client = &c
	case !errors.Is(err, repository.ErrNotFound):
		return Profile{}, dbErr(err, "client")
	}
	return p, nil
}

// RegisterClient creates a client user and its profile atomically.
func (s *AccountService) RegisterClient(ctx context.Context, cmd RegisterClient) (Profile, error) {
	if err := check(cmd); err != nil {
		return Profile{}, err
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return Profile{}, dbErr(err, "client")
	}
	committed := false
	defer rollback(tx, &committed)

	taken, err := s.repos.Clients.ExistsByDocument(ctx, tx.Tx, cmd.DocumentNumber)
	if err != nil {
		return Profile{}, dbErr(err, "client")
	}
	if taken {
		return Profile{}, apperror.Conflict("a client with this document already exists")
	}
	fullName := strings.TrimSpace(cmd.FirstName + " " + cmd.LastName)
	uid, err := s.repos.Users.Create(ctx, tx.Tx, repository.NewUser{
		Email: cmd.Email, Password: cmd.Password, FullName: fullName, Role: model.RoleClient,
	}, s.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return Profile{}, apperror.Conflict("email already registered")
	}
	if err != nil {
		return Profile{}, dbErr(err, "user")
	}
	c := model.Client{
		UserID:         &uid,
		FirstName:      strings.TrimSpace(cmd.FirstName),
		LastName:       strings.TrimSpace(cmd.LastName),
		Email:          cmd.Email,
		Phone:          cmd.Phone,
		DocumentType:   cmd.DocumentType,
		DocumentNumber: cmd.DocumentNumber,
		Address:        cmd.Address,
	}
	if err := s.repos.Clients.Create(ctx, tx.Tx, &c); err != nil {
		return Profile{}, dbErr(err, "client")
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, apperror.Infra("commit failed", err)
	}
	committed = true

	queue.PublishAsync(ctx, s.publisher, queue.NewEvent(queue.EventClientRegistered, c.Email, c.FullName()))
	u := model.User{ID: uid, Email: c.Email, FullName: fullName, Role: model.RoleClient, IsActive: true}
	if got, err := s.repos.Users.GetByID(ctx, uid); err == nil {
		u = got
	}
	return Profile{User: u, Client: &c}, nil
}

func (s *AccountService) ListClients(ctx context.Context, search string, limit, offset int) ([]model.Client, error) {
	list, err := s.repos.Clients.List(ctx, search, limit, offset)
	return list, dbErr(err, "client")
}

func (s *AccountService) GetClient(ctx context.Context, id uint64) (model.Client, error) {
	c, err := s.repos.Clients.GetByID(ctx, id)
	return c, dbErr(err, "client")
}

// CreateWalkIn registers a guest without an account.
func (s *AccountService) CreateWalkIn(ctx context.Context, cmd CreateClient) (model.Client, error) {
	if err := check(cmd); err != nil {
		return model.Client{}, err
	}
	taken, err := s.repos.Clients.ExistsByDocument(ctx, nil, cmd.DocumentNumber)
	if err != nil {
		return model.Client{}, dbErr(err, "client")
	}
	if taken {
		return model.Client{}, apperror.Conflict("a client with this document already exists")
	}
	c := model.Client{
		FirstName:      strings.TrimSpace(cmd.FirstName),
		LastName:       strings.TrimSpace(cmd.LastName),
		Email:          cmd.Email,
		Phone:          cmd.Phone,
		DocumentType:   cmd.DocumentType,
		DocumentNumber: cmd.DocumentNumber,
		Address:        cmd.Address,
	}
	if err := s.repos.Clients.Create(ctx, nil, &c); err != nil {
		return model.Client{}, dbErr(err, "client")
	}
	return c, nil
}

func (s *AccountService) UpdateClient(ctx context.Context, id uint64, cmd UpdateClient) (model.Client, error) {
	if err := check(cmd); err != nil {
		return model.Client{}, err
	}
	err := s.repos.Clients.Update(ctx, id, repository.ClientUpdate{
		FirstName:      cmd.FirstName,
		LastName:       cmd.LastName,
		Email:          cmd.Email,
		Phone:          cmd.Phone,
		DocumentType:   cmd.DocumentType,
		DocumentNumber: cmd.DocumentNumber,
		Address:        cmd.Address,
	})
	if err != nil {
		return model.Client{}, dbErr(err, "client")
	}
	return s.GetClient(ctx, id)
}

func (s *AccountService) DeleteClient(ctx context.Context, id uint64) error {
	err := s.repos.Clients.Delete(ctx, id)
	if isReferenced(err) {
		return apperror.Conflict("client has reservations and cannot be deleted")
	}
	return dbErr(err, "client")
}

func (s *AccountService) ListUsers(ctx context.Context, role model.Role, includeInactive bool) ([]model.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperror.Validationf("unknown role %q", role)
	}
	list, err := s.repos.Users.List(ctx, role, includeInactive)
	return list, dbErr(err, "user")
}

func (s *AccountService) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.repos.Users.GetByID(ctx, id)
	return u, dbErr(err, "user")
}

func (s *AccountService) CreateUser(ctx context.Context, cmd CreateUser) (model.User, error) {
	if err := check(cmd); err != nil {
		return model.User{}, err
	}
	id, err := s.repos.Users.Create(ctx, nil, repository.NewUser{
		Email: cmd.Email, Password: cmd.Password, FullName: cmd.FullName, Role: cmd.Role,
	}, s.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return model.User{}, apperror.Conflict("email already registered")
	}
	if err != nil {
		return model.User{}, dbErr(err, "user")
	}
	return s.GetUser(ctx, id)
}

func (s *AccountService) UpdateUser(ctx context.Context, id uint64, cmd UpdateUser) (model.User, error) {
	if err := check(cmd); err != nil {
		return model.User{}, err
	}
	err := s.repos.Users.Update(ctx, id, repository.UserUpdate{
		Email:    cmd.Email,
		FullName: cmd.FullName,
		Role:     cmd.Role,
		IsActive: cmd.IsActive,
		Password: cmd.Password,
	}, s.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return model.User{}, apperror.Conflict("email already registered")
	}
	if err != nil {
		return model.User{}, dbErr(err, "user")
	}
	if cmd.IsActive != nil && !*cmd.IsActive {
		_ = s.repos.Sessions.RevokeAllForUser(ctx, id)
	}
	return s.GetUser(ctx, id)
}

// DeleteUser soft deletes an account and its client profile.  Users whose
// client still has pending or confirmed reservations are kept.
func (s *AccountService) DeleteUser(ctx context.Context, actor Actor, id uint64) error {
	if actor.UserID == id {
		return apperror.Validation("you cannot delete your own account")
	}
	if _, err := s.repos.Users.GetByID(ctx, id); err != nil {
		return dbErr(err, "user")
	}
	active, err := s.repos.Clients.CountActiveReservationsByUser(ctx, id)
	if err != nil {
		return dbErr(err, "user")
	}
	if active > 0 {
		return apperror.Validationf("user has %d active reservation(s)", active)
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return dbErr(err, "user")
	}
	committed := false
	defer rollback(tx, &committed)
	if err := s.repos.Users.DeactivateTx(ctx, tx.Tx, id); err != nil {
		return dbErr(err, "user")
	}
	if err := tx.Commit(); err != nil {
		return apperror.Infra("commit failed", err)
	}
	committed = true
	return dbErr(s.repos.Sessions.RevokeAllForUser(ctx, id), "session")
}
