package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"robolink/internal/models"
)

// VerificationRepository — хранилище привязок. Все операции ключуются
// telegram id пользователя; GetPending/GetBinding возвращают (nil, nil),
// если записи нет.
type VerificationRepository interface {
	UpsertPending(ctx context.Context, p *models.PendingVerification) error
	GetPending(ctx context.Context, telegramUserID int64) (*models.PendingVerification, error)
	DeletePending(ctx context.Context, telegramUserID int64) error

	GetBinding(ctx context.Context, telegramUserID int64) (*models.Verification, error)
	// SaveBinding — одна транзакция: архив старой привязки в историю
	// (superseded_at = verified_at новой), upsert новой, удаление pending.
	SaveBinding(ctx context.Context, v *models.Verification) error
	SetGroupRank(ctx context.Context, telegramUserID int64, rank string) error

	History(ctx context.Context, telegramUserID int64) ([]*models.VerificationHistoryEntry, error)

	// отчётность
	ListBindings(ctx context.Context, limit, offset int) ([]*models.Verification, error)
	RecentHistory(ctx context.Context, limit int) ([]*models.VerificationHistoryEntry, error)
	CountPending(ctx context.Context) (int, error)
	CountBindings(ctx context.Context) (int, error)
	CountHistory(ctx context.Context) (int, error)
}

type pgVerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &pgVerificationRepository{db: db}
}

// UpsertPending — полная замена активной заявки (одна строка на пользователя).
func (r *pgVerificationRepository) UpsertPending(ctx context.Context, p *models.PendingVerification) error {
	const q = `
		INSERT INTO pending_verifications (telegram_user_id, chat_id, roblox_username, roblox_id, code, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_user_id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id,
		    roblox_username = EXCLUDED.roblox_username,
		    roblox_id = EXCLUDED.roblox_id,
		    code = EXCLUDED.code,
		    issued_at = EXCLUDED.issued_at
	`
	if _, err := r.db.ExecContext(ctx, q,
		p.TelegramUserID, p.ChatID, p.RobloxUsername, p.RobloxID, p.Code, p.IssuedAt,
	); err != nil {
		return fmt.Errorf("pending upsert: %w", err)
	}
	return nil
}

func (r *pgVerificationRepository) GetPending(ctx context.Context, telegramUserID int64) (*models.PendingVerification, error) {
	const q = `
		SELECT telegram_user_id, chat_id, roblox_username, roblox_id, code, issued_at
		FROM pending_verifications
		WHERE telegram_user_id = $1
	`
	var p models.PendingVerification
	err := r.db.QueryRowContext(ctx, q, telegramUserID).Scan(
		&p.TelegramUserID, &p.ChatID, &p.RobloxUsername, &p.RobloxID, &p.Code, &p.IssuedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("pending get: %w", err)
	}
	return &p, nil
}

func (r *pgVerificationRepository) DeletePending(ctx context.Context, telegramUserID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_verifications WHERE telegram_user_id = $1`, telegramUserID,
	); err != nil {
		return fmt.Errorf("pending delete: %w", err)
	}
	return nil
}

func (r *pgVerificationRepository) GetBinding(ctx context.Context, telegramUserID int64) (*models.Verification, error) {
	const q = `
		SELECT telegram_user_id, roblox_id, roblox_username, group_rank, verified_at
		FROM verifications
		WHERE telegram_user_id = $1
	`
	var v models.Verification
	var rank sql.NullString
	err := r.db.QueryRowContext(ctx, q, telegramUserID).Scan(
		&v.TelegramUserID, &v.RobloxID, &v.RobloxUsername, &rank, &v.VerifiedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("binding get: %w", err)
	}
	if rank.Valid {
		s := rank.String
		v.GroupRank = &s
	}
	return &v, nil
}

func (r *pgVerificationRepository) SaveBinding(ctx context.Context, v *models.Verification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("binding save begin: %w", err)
	}
	defer tx.Rollback()

	// архивируем прежнюю привязку, если была
	const qArchive = `
		INSERT INTO verification_history (telegram_user_id, roblox_id, roblox_username, verified_at, superseded_at)
		SELECT telegram_user_id, roblox_id, roblox_username, verified_at, $2
		FROM verifications
		WHERE telegram_user_id = $1
	`
	if _, err := tx.ExecContext(ctx, qArchive, v.TelegramUserID, v.VerifiedAt); err != nil {
		return fmt.Errorf("binding archive: %w", err)
	}

	const qUpsert = `
		INSERT INTO verifications (telegram_user_id, roblox_id, roblox_username, group_rank, verified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_user_id) DO UPDATE
		SET roblox_id = EXCLUDED.roblox_id,
		    roblox_username = EXCLUDED.roblox_username,
		    group_rank = EXCLUDED.group_rank,
		    verified_at = EXCLUDED.verified_at
	`
	if _, err := tx.ExecContext(ctx, qUpsert,
		v.TelegramUserID, v.RobloxID, v.RobloxUsername, v.GroupRank, v.VerifiedAt,
	); err != nil {
		return fmt.Errorf("binding upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_verifications WHERE telegram_user_id = $1`, v.TelegramUserID,
	); err != nil {
		return fmt.Errorf("binding pending cleanup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("binding save commit: %w", err)
	}
	return nil
}

func (r *pgVerificationRepository) SetGroupRank(ctx context.Context, telegramUserID int64, rank string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE verifications SET group_rank = $1 WHERE telegram_user_id = $2`, rank, telegramUserID,
	); err != nil {
		return fmt.Errorf("binding set rank: %w", err)
	}
	return nil
}

func (r *pgVerificationRepository) History(ctx context.Context, telegramUserID int64) ([]*models.VerificationHistoryEntry, error) {
	const q = `
		SELECT id, telegram_user_id, roblox_id, roblox_username, verified_at, superseded_at
		FROM verification_history
		WHERE telegram_user_id = $1
		ORDER BY superseded_at
	`
	rows, err := r.db.QueryContext(ctx, q, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	defer rows.Close()

	var res []*models.VerificationHistoryEntry
	for rows.Next() {
		var e models.VerificationHistoryEntry
		if err := rows.Scan(&e.ID, &e.TelegramUserID, &e.RobloxID, &e.RobloxUsername, &e.VerifiedAt, &e.SupersededAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		res = append(res, &e)
	}
	return res, rows.Err()
}

// ===== отчётность =====

func (r *pgVerificationRepository) ListBindings(ctx context.Context, limit, offset int) ([]*models.Verification, error) {
	const q = `
		SELECT telegram_user_id, roblox_id, roblox_username, group_rank, verified_at
		FROM verifications
		ORDER BY verified_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bindings list: %w", err)
	}
	defer rows.Close()

	var res []*models.Verification
	for rows.Next() {
		var v models.Verification
		var rank sql.NullString
		if err := rows.Scan(&v.TelegramUserID, &v.RobloxID, &v.RobloxUsername, &rank, &v.VerifiedAt); err != nil {
			return nil, fmt.Errorf("bindings scan: %w", err)
		}
		if rank.Valid {
			s := rank.String
			v.GroupRank = &s
		}
		res = append(res, &v)
	}
	return res, rows.Err()
}

// RecentHistory — последние вытеснения по всем пользователям, свежие первыми.
func (r *pgVerificationRepository) RecentHistory(ctx context.Context, limit int) ([]*models.VerificationHistoryEntry, error) {
	const q = `
		SELECT id, telegram_user_id, roblox_id, roblox_username, verified_at, superseded_at
		FROM verification_history
		ORDER BY superseded_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history list: %w", err)
	}
	defer rows.Close()

	var res []*models.VerificationHistoryEntry
	for rows.Next() {
		var e models.VerificationHistoryEntry
		if err := rows.Scan(&e.ID, &e.TelegramUserID, &e.RobloxID, &e.RobloxUsername, &e.VerifiedAt, &e.SupersededAt); err != nil {
			return nil, fmt.Errorf("recent history scan: %w", err)
		}
		res = append(res, &e)
	}
	return res, rows.Err()
}

func (r *pgVerificationRepository) CountPending(ctx context.Context) (int, error) {
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_verifications`).Scan(&c)
	return c, err
}

func (r *pgVerificationRepository) CountBindings(ctx context.Context) (int, error) {
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verifications`).Scan(&c)
	return c, err
}

func (r *pgVerificationRepository) CountHistory(ctx context.Context) (int, error) {
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verification_history`).Scan(&c)
	return c, err
}
