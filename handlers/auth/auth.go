package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/handlers/customers"
	"Qurbani-app-backend/handlers/users"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
)

// Config carries the token settings.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func Register(g fiber.Router, pool *pgxpool.Pool, cfg Config, jwtGuard, loginLimiter fiber.Handler) {
	// Public routes
	g.Post("/login", loginLimiter, login(pool, cfg))
	g.Post("/refresh", loginLimiter, refresh(pool, cfg))

	// Protected routes
	g.Get("/me", jwtGuard, me(pool))
	g.Post("/logout", jwtGuard, logout(pool))
}

// sha256b64 hashes a string with SHA256 and base64-encodes it.
func sha256b64(s string) string {
	h := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(h[:])
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// staffTable maps staff roles to their account table.
func staffTable(role models.UserRole) string {
	switch role {
	case models.UserRoleAdmin:
		return "admins"
	case models.UserRoleSupervisor:
		return "supervisors"
	}
	return ""
}

func findStaff(ctx context.Context, q db.Querier, role models.UserRole, where string, arg any) (models.Staff, error) {
	var s models.Staff
	err := q.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM `+staffTable(role)+` WHERE `+where, arg).
		Scan(&s.ID, &s.Username, &s.PasswordHash, &s.CreatedAt)
	return s, err
}

// ---------- /auth/login ----------
func login(pool *pgxpool.Pool, cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.LoginRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		identifier := strings.TrimSpace(b.Identifier)

		switch b.Auth {
		case models.UserRoleAdmin, models.UserRoleSupervisor:
			s, err := findStaff(c.Context(), pool, b.Auth, "username = $1", identifier)
			if err != nil {
				if db.IsNoRows(err) {
					return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
				}
				return err
			}
			if !users.CheckPassword(s.PasswordHash, b.Password) {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
			}
			resp, err := issueTokens(c, pool, cfg, s.ID, b.Auth)
			if err != nil {
				return err
			}
			resp.User = s
			return c.JSON(resp)

		default:
			u, err := users.FindByLogin(c.Context(), pool, identifier)
			if err != nil {
				if db.IsNoRows(err) {
					return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
				}
				return err
			}
			if !users.CheckPassword(u.PasswordHash, b.Password) {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
			}
			resp, err := issueTokens(c, pool, cfg, u.ID, models.UserRoleUser)
			if err != nil {
				return err
			}
			resp.User = u
			resp.Customers, err = customers.ListByUser(c.Context(), pool, u.Name, true)
			if err != nil {
				return fmt.Errorf("failed to load customers: %w", err)
			}
			return c.JSON(resp)
		}
	}
}

// issueTokens builds an access token and stores a rotating refresh session.
func issueTokens(c *fiber.Ctx, pool *pgxpool.Pool, cfg Config, accountID int64, role models.UserRole) (models.LoginResponse, error) {
	accessToken, err := mw.BuildAccessToken(cfg.Secret, accountID, role, cfg.AccessTTL)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("failed to build access token: %w", err)
	}

	rawRefreshToken, err := newRefreshToken()
	if err != nil {
		return models.LoginResponse{}, err
	}
	_, err = pool.Exec(c.Context(), `
		INSERT INTO auth_sessions(account_role, account_id, refresh_token_hash, user_agent, ip, expires_at)
		VALUES ($1,$2,$3,$4,$5, NOW() + $6::interval)
	`, role, accountID, sha256b64(rawRefreshToken), c.Get("User-Agent"), c.IP(), cfg.RefreshTTL.String())
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return models.LoginResponse{
		AccessToken:  accessToken,
		ExpiresIn:    int(cfg.AccessTTL.Seconds()),
		RefreshToken: &rawRefreshToken,
		UserType:     role,
	}, nil
}

// ---------- /auth/refresh ----------
func refresh(pool *pgxpool.Pool, cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.RefreshRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}

		hashR := sha256b64(strings.TrimSpace(b.RefreshToken))
		var accountID int64
		var role models.UserRole
		var expires time.Time
		var revoked *time.Time
		err := pool.QueryRow(c.Context(), `
			SELECT account_id, account_role, expires_at, revoked_at
			FROM auth_sessions
			WHERE refresh_token_hash = $1
			LIMIT 1
		`, hashR).Scan(&accountID, &role, &expires, &revoked)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid refresh token")
			}
			return err
		}
		if revoked != nil || time.Now().After(expires) {
			if revoked == nil {
				_, _ = pool.Exec(c.Context(), `UPDATE auth_sessions SET revoked_at=NOW() WHERE refresh_token_hash=$1`, hashR)
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Expired or revoked refresh token")
		}

		if _, err := loadAccount(c.Context(), pool, role, accountID); err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusUnauthorized, "Account no longer exists")
			}
			return err
		}

		// Rotate refresh: revoke old & issue new
		_, _ = pool.Exec(c.Context(), `UPDATE auth_sessions SET revoked_at=NOW() WHERE refresh_token_hash=$1`, hashR)

		resp, err := issueTokens(c, pool, cfg, accountID, role)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

func loadAccount(ctx context.Context, q db.Querier, role models.UserRole, id int64) (any, error) {
	switch role {
	case models.UserRoleAdmin, models.UserRoleSupervisor:
		return findStaff(ctx, q, role, "id = $1", id)
	case models.UserRoleUser:
		return users.FindByID(ctx, q, id)
	}
	return nil, fiber.NewError(fiber.StatusUnauthorized, "unknown role")
}

// ---------- /auth/me ----------
func me(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cls, _ := c.Locals("claims").(*mw.Claims)
		if cls == nil {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		account, err := loadAccount(c.Context(), pool, cls.Role, cls.Sub)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusUnauthorized, "Account no longer exists")
			}
			return err
		}
		return c.JSON(fiber.Map{"user_id": cls.Sub, "role": cls.Role, "user": account})
	}
}

// ---------- /auth/logout ----------
func logout(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.RefreshRequest
		if c.BodyParser(&b) == nil && strings.TrimSpace(b.RefreshToken) != "" {
			_, _ = pool.Exec(c.Context(), `UPDATE auth_sessions SET revoked_at=NOW() WHERE refresh_token_hash=$1`,
				sha256b64(strings.TrimSpace(b.RefreshToken)))
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// CreateStaff inserts an admin or supervisor account with a bcrypt hash.
func CreateStaff(ctx context.Context, q db.Querier, role models.UserRole, username, password string) (int64, error) {
	table := staffTable(role)
	if table == "" {
		return 0, fmt.Errorf("role %q is not a staff role", role)
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRow(ctx,
		`INSERT INTO `+table+`(username, password_hash) VALUES ($1,$2)
		 ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		 RETURNING id`,
		strings.TrimSpace(username), hash).Scan(&id)
	return id, err
}
