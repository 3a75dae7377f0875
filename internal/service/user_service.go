package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"disc-assess/internal/domain"
	"disc-assess/internal/email"
	"disc-assess/internal/profilehook"
	"disc-assess/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	limiter     LoginCodeLimiter
	profiles    profilehook.Fetcher
	adminEmails map[string]struct{}
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, limiter LoginCodeLimiter) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLoginCodeLimiter(loginCodeTTL, 3)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		limiter:     limiter,
		adminEmails: map[string]struct{}{},
	}
}

// WithProfileFetcher habilita el enriquecimiento de perfil en el registro.
func (s *UserService) WithProfileFetcher(f profilehook.Fetcher) *UserService {
	s.profiles = f
	return s
}

// WithAdminEmails marca los emails que se registran con rol admin.
func (s *UserService) WithAdminEmails(emails []string) *UserService {
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			s.adminEmails[e] = struct{}{}
		}
	}
	return s
}

type RegisterInput struct {
	Email      string
	Name       string
	Password   string
	ProfileURL string
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrLoginCodeMissing   = errors.New("login code not requested")
	ErrLoginCodeExpired   = errors.New("login code expired")
	ErrLoginCodeInvalid   = errors.New("login code invalid")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrTooManyRequests    = errors.New("too many login code requests")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidRole        = errors.New("invalid role")
)

const (
	loginCodeTTL      = 10 * time.Minute
	minPasswordLength = 8
	defaultPageSize   = 50
	maxPageSize       = 200
)

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrUserExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	role := domain.RoleUser
	if _, ok := s.adminEmails[emailAddr]; ok {
		role = domain.RoleAdmin
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}

	if profileURL := strings.TrimSpace(input.ProfileURL); profileURL != "" {
		s.enrichProfile(ctx, &user, profileURL)
	}
	return user, nil
}

// enrichProfile es best-effort: cualquier fallo se loguea y el registro sigue.
func (s *UserService) enrichProfile(ctx context.Context, user *domain.User, profileURL string) {
	if s.profiles == nil {
		return
	}
	profile, err := s.profiles.Fetch(ctx, profileURL)
	if err != nil {
		if !errors.Is(err, profilehook.ErrDisabled) {
			s.logger.Warn("profile webhook failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return
	}
	if profile.Empty() {
		return
	}
	if err := s.users.UpdateProfile(ctx, user.ID, profile); err != nil {
		s.logger.Warn("profile update failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.Profile = &profile
	if user.Name == "" {
		user.Name = profile.FullName
	}
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestLoginCode envia un codigo de 6 digitos; solo para cuentas existentes.
func (s *UserService) RequestLoginCode(ctx context.Context, emailAddr string) (time.Time, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return time.Time{}, ErrInvalidEmail
	}
	if !s.limiter.Allow(ctx, emailAddr) {
		return time.Time{}, ErrTooManyRequests
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}

	code, hash, expiresAt, err := generateLoginCode()
	if err != nil {
		return time.Time{}, err
	}
	if err := s.users.UpdateLoginCode(ctx, user.ID, hash, expiresAt); err != nil {
		return time.Time{}, err
	}

	if s.emailSender == nil {
		return time.Time{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendLoginCode(ctx, emailAddr, code, expiresAt); err != nil {
		s.logger.Warn("send login code failed", zap.Error(err), zap.String("email", emailAddr))
		return time.Time{}, ErrEmailSendFailure
	}
	return expiresAt, nil
}

func (s *UserService) VerifyLoginCode(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if !isValidLoginCode(code) {
		return domain.User{}, ErrLoginCodeInvalid
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if user.LoginCodeHash == "" || user.LoginCodeExpiry == nil {
		return domain.User{}, ErrLoginCodeMissing
	}
	if time.Now().UTC().After(*user.LoginCodeExpiry) {
		return domain.User{}, ErrLoginCodeExpired
	}
	if !verifyLoginCode(code, user.LoginCodeHash) {
		return domain.User{}, ErrLoginCodeInvalid
	}

	verifiedAt := time.Now().UTC()
	if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, err
	}
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &verifiedAt
	}
	user.LoginCodeHash = ""
	user.LoginCodeExpiry = nil
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// List pagina desde 1.
func (s *UserService) List(ctx context.Context, page, pageSize int) ([]domain.User, error) {
	limit, offset := pageBounds(page, pageSize)
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) SetRole(ctx context.Context, id, role string) (domain.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.User{}, ErrInvalidRole
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	s.logger.Info("user role changed", zap.String("user_id", id), zap.String("role", role))
	return s.GetByID(ctx, id)
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

func generateLoginCode() (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	return code, saltStr + ":" + hashLoginCode(saltStr, code), time.Now().UTC().Add(loginCodeTTL), nil
}

func hashLoginCode(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func verifyLoginCode(code, stored string) bool {
	salt, expected, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashLoginCode(salt, code)), []byte(expected)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isValidLoginCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
