package repositories

import (
	"database/sql"
	"time"

	"robolink/internal/models"
)

// UserRepository — служебные учётки операторов. Заводятся миграцией,
// поэтому тут только чтение и refresh-хелперы.
type UserRepository interface {
	GetByEmail(email string) (*models.User, error)

	// refresh helpers
	UpdateRefresh(userID int, token string, expiresAt time.Time) error
	RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	ClearRefresh(userID int) error
	GetByRefreshToken(token string) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	const q = `
		SELECT
			id, email, password_hash, role_id,
			refresh_token, refresh_expires_at, refresh_revoked
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.DB.QueryRow(q, email))
}

func (r *userRepository) GetByRefreshToken(token string) (*models.User, error) {
	const q = `
		SELECT
			id, email, password_hash, role_id,
			refresh_token, refresh_expires_at, refresh_revoked
		FROM users
		WHERE refresh_token = $1
	`
	return r.scanUser(r.DB.QueryRow(q, token))
}

// scanUser — общий разбор строки users (nullable-поля через sql.Null*).
func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var (
		roleID sql.NullInt64
		rt     sql.NullString
		rte    sql.NullTime
		rr     sql.NullBool
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &roleID, &rt, &rte, &rr)
	if err != nil {
		return nil, err
	}
	if roleID.Valid {
		u.RoleID = int(roleID.Int64)
	}
	if rt.Valid {
		s := rt.String
		u.RefreshToken = &s
	}
	if rte.Valid {
		t := rte.Time
		u.RefreshExpiresAt = &t
	}
	if rr.Valid {
		u.RefreshRevoked = rr.Bool
	}
	return u, nil
}

// ===== refresh helpers =====

func (r *userRepository) UpdateRefresh(userID int, token string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE id=$3
	`
	_, err := r.DB.Exec(q, token, expiresAt, userID)
	return err
}

func (r *userRepository) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	const q = `
		UPDATE users
		SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE refresh_token=$3
		RETURNING id, email, password_hash, role_id,
			refresh_token, refresh_expires_at, refresh_revoked
	`
	return r.scanUser(r.DB.QueryRow(q, newToken, newExpiresAt, oldToken))
}

func (r *userRepository) ClearRefresh(userID int) error {
	_, err := r.DB.Exec(`
		UPDATE users
		SET refresh_token=NULL, refresh_expires_at=NULL, refresh_revoked=TRUE
		WHERE id=$1
	`, userID)
	return err
}
