package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/referral"
)

type Service struct {
	pool      *pgxpool.Pool
	referrals *referral.Service
	issuer    string
	secret    []byte
	ttl       time.Duration
	timeout   time.Duration
}

func NewService(pool *pgxpool.Pool, referrals *referral.Service, issuer string, secret []byte, ttl, storeTimeout time.Duration) *Service {
	return &Service{pool: pool, referrals: referrals, issuer: issuer, secret: secret, ttl: ttl, timeout: storeTimeout}
}

type User struct {
	ID           string                `json:"id"`
	Email        string                `json:"email"`
	ReferralCode string                `json:"referral_code"`
	Balance      ledger.BalanceSnapshot `json:"balance"`
	CreatedAt    time.Time             `json:"created_at"`
}

// referralCodeFor derives a user's share code from their id. The prefix is
// cosmetic; uniqueness comes from the id.
func referralCodeFor(userID string) string {
	return "cp" + strings.ReplaceAll(userID, "-", "")
}

// Register creates the user and, when a valid referral code is supplied,
// the pending referral row in the same transaction. An unknown code is
// ignored rather than rejected.
func (s *Service) Register(ctx context.Context, email, password, referralCode string) (User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, "", apperr.Validation("invalid email address")
	}
	if len(password) < 8 {
		return User{}, "", apperr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", apperr.Wrap(apperr.CodeStore, "hash password", err)
	}

	var referrerID string
	if code := strings.TrimSpace(referralCode); code != "" {
		if ownerID, found, err := s.referrals.ValidateCode(ctx, code); err != nil {
			return User{}, "", err
		} else if found {
			referrerID = ownerID
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, "", apperr.Store(err)
	}
	defer tx.Rollback(ctx)

	userID := uuid.NewString()
	var user User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)
		RETURNING id, email, referral_code, created_at
	`, userID, email, string(hash), referralCodeFor(userID), referrerID).Scan(
		&user.ID, &user.Email, &user.ReferralCode, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, "", apperr.Conflict("email already registered")
		}
		return User{}, "", apperr.Store(err)
	}

	if referrerID != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO referrals (referrer_id, referred_id, status)
			VALUES ($1, $2, 'active')
		`, referrerID, userID); err != nil {
			return User{}, "", apperr.Store(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, "", apperr.Store(err)
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user User
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, referral_code, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.ReferralCode, &hash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", apperr.Unauthorized("invalid credentials")
		}
		return User{}, "", apperr.Store(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, "", apperr.Unauthorized("invalid credentials")
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE users
		SET last_login = NOW()
		WHERE id = $1
	`, user.ID); err != nil {
		return User{}, "", apperr.Store(err)
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, referral_code, balance, total_profit, referral_earnings, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Email, &user.ReferralCode,
		&user.Balance.Balance, &user.Balance.TotalProfit, &user.Balance.ReferralEarnings,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, apperr.Store(err)
	}
	return user, nil
}

func (s *Service) signToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStore, "sign token", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", apperr.Unauthorized("invalid token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", apperr.Unauthorized("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", apperr.Unauthorized("invalid issuer")
	}
	if claims.Subject == "" {
		return "", apperr.Unauthorized("invalid subject")
	}
	return claims.Subject, nil
}

func isUniqueViolation(err error) bool {
	var pgerr interface{ SQLState() string }
	return errors.As(err, &pgerr) && pgerr.SQLState() == "23505"
}
