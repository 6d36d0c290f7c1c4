package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/foliodev/folio/internal/mail"
	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/store"
)

const (
	// TokenTTL is the lifetime of every bearer token.
	TokenTTL = 7 * 24 * time.Hour
	// OTPTTL is how long an emailed code stays valid.
	OTPTTL = 10 * time.Minute
	// DefaultBcryptCost is the work factor for stored password hashes.
	DefaultBcryptCost = 12

	tokenIssuer = "folio"
)

// JWTPrincipal is the identity carried by a verified bearer token.
type JWTPrincipal struct {
	AdminID   int64
	Email     string
	ExpiresAt time.Time
}

// Session is the outcome of every successful auth branch.
type Session struct {
	Token     string
	User      model.User
	ExpiresAt time.Time
}

// Response converts the session into its wire shape.
func (s *Session) Response() model.SessionResponse {
	return model.SessionResponse{Success: true, Token: s.Token, User: s.User}
}

// AuthService implements the admin sign-in state machine: whitelist check,
// password or first-time registration, emailed one-time codes, and
// stateless bearer tokens.
type AuthService struct {
	store      *store.Store
	mailer     mail.Sender
	jwtSecret  []byte
	bcryptCost int
	now        func() time.Time
	genCode    func() (string, error)
	logger     *slog.Logger
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock overrides the time source used for token and OTP expiry.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithBcryptCost overrides the password hashing work factor.
func WithBcryptCost(cost int) Option {
	return func(s *AuthService) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// WithCodeGenerator overrides how one-time codes are drawn.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *AuthService) { s.genCode = gen }
}

func NewAuthService(st *store.Store, mailer mail.Sender, jwtSecret string, opts ...Option) *AuthService {
	s := &AuthService{
		store:      st,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
		genCode:    GenerateOTP,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIdentity reports whether email is whitelisted and which sign-in
// branch applies to it. It never writes.
func (s *AuthService) CheckIdentity(ctx context.Context, email string) (*model.IdentityStatus, error) {
	in := CheckEmailInput{Email: strings.TrimSpace(email)}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	admin, err := s.lookup(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	return &model.IdentityStatus{
		Authorized:  true,
		HasPassword: admin.HasPassword(),
		HasMobile:   admin.HasMobile(),
		Email:       admin.Email,
	}, nil
}

// AuthenticateWithPassword verifies a password for a whitelisted identity.
func (s *AuthService) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	in := LoginInput{Email: strings.TrimSpace(email), Password: password}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	admin, err := s.lookup(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if !admin.HasPassword() {
		return nil, ErrNoPassword
	}

	err = bcrypt.CompareHashAndPassword([]byte(*admin.PasswordHash), []byte(in.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("compare password hash", "admin_id", admin.ID, "error", err)
		return nil, fmt.Errorf("compare password hash: %w", err)
	}
	return s.newSession(ctx, admin)
}

// Register attaches a password, and optionally a mobile number, to a
// whitelisted identity that has none yet. It never creates an identity.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Mobile = strings.TrimSpace(in.Mobile)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, validationErrorf("password", "password must be at most %d bytes", MaxPasswordBytes)
	}
	admin, err := s.lookup(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if admin.HasPassword() {
		return nil, ErrPasswordAlreadySet
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var mobile *string
	if in.Mobile != "" {
		mobile = &in.Mobile
	}
	switch err := s.store.SetAdminPassword(ctx, admin.ID, string(hash), mobile); {
	case errors.Is(err, store.ErrConflict):
		// Lost a race with a concurrent registration.
		return nil, ErrPasswordAlreadySet
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrAccessDenied
	case err != nil:
		s.logger.Error("set admin password", "admin_id", admin.ID, "error", err)
		return nil, err
	}

	s.logger.Info("admin registered", "admin_id", admin.ID)
	return s.newSession(ctx, admin)
}

// SendOTP issues a fresh one-time code, retiring any earlier ones, and mails
// it to the identity. A delivery failure is reported as ErrDelivery even
// though the code has already been stored.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	in := CheckEmailInput{Email: strings.TrimSpace(email)}
	if err := validateInput(in); err != nil {
		return err
	}
	admin, err := s.lookup(ctx, in.Email)
	if err != nil {
		return err
	}

	code, err := s.genCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if _, err := s.store.IssueOTP(ctx, admin.Email, code, s.now().Add(OTPTTL)); err != nil {
		s.logger.Error("issue otp", "admin_id", admin.ID, "error", err)
		return err
	}

	if err := s.mailer.SendOTP(ctx, admin.Email, code, OTPTTL); err != nil {
		s.logger.Error("deliver otp", "admin_id", admin.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// VerifyOTP consumes a one-time code and opens a session. A code can be
// consumed once.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	in := VerifyOTPInput{Email: strings.TrimSpace(email), OTP: strings.TrimSpace(code)}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	admin, err := s.lookup(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.ConsumeOTP(ctx, admin.Email, in.OTP, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		s.logger.Error("consume otp", "admin_id", admin.ID, "error", err)
		return nil, err
	}
	return s.newSession(ctx, admin)
}

// ValidateJWT verifies a bearer token's signature and expiry. Any failure
// is reported as ErrUnauthorized.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*JWTPrincipal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if !token.Valid {
		return nil, ErrUnauthorized
	}

	p := &JWTPrincipal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// IssueJWT creates a new signed token for the given admin.
func (s *AuthService) IssueJWT(ctx context.Context, adminID int64, email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type jwtClaims struct {
	AdminID int64  `json:"userId"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// lookup returns the whitelisted identity for email or ErrAccessDenied.
func (s *AuthService) lookup(ctx context.Context, email string) (*model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		s.logger.Error("look up admin", "error", err)
		return nil, err
	}
	return admin, nil
}

func (s *AuthService) newSession(ctx context.Context, admin *model.Admin) (*Session, error) {
	expires := s.now().Add(TokenTTL)
	token, err := s.IssueJWT(ctx, admin.ID, admin.Email, TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{
		Token:     token,
		User:      admin.Public(),
		ExpiresAt: expires,
	}, nil
}

// GenerateOTP draws a uniformly random six-digit code, zero-padded.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
