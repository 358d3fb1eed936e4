package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"robolink/internal/models"
	"robolink/internal/realtime"
	"robolink/internal/repositories"
	"robolink/internal/roblox"
	"robolink/internal/utils"
)

var (
	ErrUsernameNotFound    = errors.New("username not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrCodeNotFound        = errors.New("code not found in profile")
	ErrAlreadyVerified     = errors.New("already verified")
	ErrNotVerified         = errors.New("not verified")
	ErrNoPending           = errors.New("no pending verification")
)

const defaultCodeLength = 8

// RoleSync — пост-обработка успешной привязки (ранг группы и writeback).
// Ошибка синхронизации привязку не откатывает.
type RoleSync interface {
	SyncAfterVerify(ctx context.Context, v *models.Verification) (string, error)
}

// VerificationService — контроллер привязки Telegram-аккаунта к Roblox.
// Один pending и одна привязка на пользователя; переходы одного пользователя
// сериализуются per-user мьютексом, включая вызовы Roblox API.
type VerificationService struct {
	Repo     repositories.VerificationRepository
	Roblox   *roblox.Client
	RoleSync RoleSync           // может быть nil
	Hub      *realtime.EventHub // может быть nil
	CodeLen  int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewVerificationService(
	repo repositories.VerificationRepository,
	rbx *roblox.Client,
	roleSync RoleSync,
	hub *realtime.EventHub,
	codeLen int,
) *VerificationService {
	if codeLen <= 0 {
		codeLen = defaultCodeLength
	}
	return &VerificationService{
		Repo:     repo,
		Roblox:   rbx,
		RoleSync: roleSync,
		Hub:      hub,
		CodeLen:  codeLen,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// userLock — мьютекс конкретного пользователя: его операции строго
// последовательны, чужие пользователи друг друга не ждут.
func (s *VerificationService) userLock(telegramUserID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[telegramUserID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[telegramUserID] = l
	}
	return l
}

// ================== БЛОК: СТАРТ ==================

// Start — резолвим ник, выдаём свежий код, целиком заменяем прежнюю заявку.
// При ошибке резолва ничего не записываем, существующая привязка не трогается.
func (s *VerificationService) Start(ctx context.Context, telegramUserID, chatID int64, username string) (*models.PendingVerification, error) {
	lock := s.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()
	return s.startLocked(ctx, telegramUserID, chatID, username)
}

// Reverify — то же, что Start, но только для уже подтверждённого пользователя.
// Текущая привязка продолжает действовать, пока новая не подтверждена.
func (s *VerificationService) Reverify(ctx context.Context, telegramUserID, chatID int64, username string) (*models.PendingVerification, error) {
	lock := s.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Repo.GetPending(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("pending lookup: %w", err)
	}
	b, err := s.Repo.GetBinding(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("binding lookup: %w", err)
	}
	if !canTransition(stateOf(p != nil, b != nil), StateVerifiedPending) {
		return nil, ErrNotVerified
	}
	return s.startLocked(ctx, telegramUserID, chatID, username)
}

func (s *VerificationService) startLocked(ctx context.Context, telegramUserID, chatID int64, username string) (*models.PendingVerification, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameNotFound
	}

	robloxID, err := s.Roblox.ResolveUsername(ctx, username)
	if err != nil {
		switch {
		case errors.Is(err, roblox.ErrUserNotFound):
			log.Printf("[verify][start] username not found: user_id=%d username=%q", telegramUserID, username)
			return nil, ErrUsernameNotFound
		case errors.Is(err, roblox.ErrUnavailable):
			log.Printf("[verify][start] roblox unavailable: user_id=%d err=%v", telegramUserID, err)
			return nil, ErrProviderUnavailable
		default:
			return nil, fmt.Errorf("resolve username: %w", err)
		}
	}

	code, err := utils.GenerateCode(s.CodeLen)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	p := &models.PendingVerification{
		TelegramUserID: telegramUserID,
		ChatID:         chatID,
		RobloxUsername: username,
		RobloxID:       robloxID,
		Code:           code,
		IssuedAt:       time.Now().UTC(),
	}
	if err := s.Repo.UpsertPending(ctx, p); err != nil {
		return nil, fmt.Errorf("store pending: %w", err)
	}

	log.Printf("[verify][start] ok: user_id=%d roblox=%q roblox_id=%d", telegramUserID, username, robloxID)
	s.publish(realtime.EventStarted, telegramUserID, robloxID, username)
	return p, nil
}

// ================== БЛОК: ПОДТВЕРЖДЕНИЕ ==================

// Complete — тянем описание профиля по сохранённому при старте id (ник
// заново не резолвим) и ищем код как подстроку. Неудача ничего не меняет,
// вызывать можно сколько угодно раз; заявка не протухает.
func (s *VerificationService) Complete(ctx context.Context, telegramUserID int64) (*models.Verification, error) {
	lock := s.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Repo.GetPending(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("pending lookup: %w", err)
	}
	prior, err := s.Repo.GetBinding(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("binding lookup: %w", err)
	}

	cur := stateOf(p != nil, prior != nil)
	if !canTransition(cur, StateVerified) {
		if cur == StateVerified {
			return nil, ErrAlreadyVerified
		}
		return nil, ErrNoPending
	}

	desc, err := s.Roblox.ProfileDescription(ctx, p.RobloxID)
	if err != nil {
		switch {
		case errors.Is(err, roblox.ErrUserNotFound):
			// профиль исчез между start и complete
			log.Printf("[verify][complete] profile missing: user_id=%d roblox_id=%d", telegramUserID, p.RobloxID)
			return nil, ErrUsernameNotFound
		case errors.Is(err, roblox.ErrUnavailable):
			log.Printf("[verify][complete] roblox unavailable: user_id=%d err=%v", telegramUserID, err)
			return nil, ErrProviderUnavailable
		default:
			return nil, fmt.Errorf("profile fetch: %w", err)
		}
	}

	// точное вхождение, с учётом регистра
	if !strings.Contains(desc, p.Code) {
		log.Printf("[verify][complete] code not in profile: user_id=%d roblox_id=%d", telegramUserID, p.RobloxID)
		return nil, ErrCodeNotFound
	}

	v := &models.Verification{
		TelegramUserID: telegramUserID,
		RobloxID:       p.RobloxID,
		RobloxUsername: p.RobloxUsername,
		VerifiedAt:     time.Now().UTC(),
	}
	if err := s.Repo.SaveBinding(ctx, v); err != nil {
		return nil, fmt.Errorf("store binding: %w", err)
	}
	log.Printf("[verify][complete] OK user_id=%d roblox=%q roblox_id=%d", telegramUserID, v.RobloxUsername, v.RobloxID)

	// ранг: сбой только логируем, привязка уже зафиксирована
	if s.RoleSync != nil {
		if rank, err := s.RoleSync.SyncAfterVerify(ctx, v); err != nil {
			log.Printf("[verify][complete] role sync failed: user_id=%d err=%v", telegramUserID, err)
		} else if rank != "" {
			v.GroupRank = &rank
		}
	}

	event := realtime.EventVerified
	if prior != nil {
		event = realtime.EventReverified
	}
	s.publish(event, telegramUserID, v.RobloxID, v.RobloxUsername)
	return v, nil
}

// ================== БЛОК: ОТМЕНА И СТАТУС ==================

// Cancel — снимаем активную заявку. Привязка, если была, остаётся как есть.
func (s *VerificationService) Cancel(ctx context.Context, telegramUserID int64) error {
	lock := s.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Repo.GetPending(ctx, telegramUserID)
	if err != nil {
		return fmt.Errorf("pending lookup: %w", err)
	}
	b, err := s.Repo.GetBinding(ctx, telegramUserID)
	if err != nil {
		return fmt.Errorf("binding lookup: %w", err)
	}

	target := StateUnverified
	if b != nil {
		target = StateVerified
	}
	if !canTransition(stateOf(p != nil, b != nil), target) {
		return ErrNoPending
	}

	if err := s.Repo.DeletePending(ctx, telegramUserID); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	log.Printf("[verify][cancel] user_id=%d roblox=%q", telegramUserID, p.RobloxUsername)
	s.publish(realtime.EventCancelled, telegramUserID, p.RobloxID, p.RobloxUsername)
	return nil
}

// Status — сводка по пользователю без похода в Roblox.
func (s *VerificationService) Status(ctx context.Context, telegramUserID int64) (*models.VerificationStatus, error) {
	lock := s.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Repo.GetPending(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("pending lookup: %w", err)
	}
	b, err := s.Repo.GetBinding(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("binding lookup: %w", err)
	}
	return &models.VerificationStatus{
		State:   stateOf(p != nil, b != nil),
		Pending: p,
		Binding: b,
	}, nil
}

// History — вытесненные привязки, от старых к новым.
func (s *VerificationService) History(ctx context.Context, telegramUserID int64) ([]*models.VerificationHistoryEntry, error) {
	return s.Repo.History(ctx, telegramUserID)
}

func (s *VerificationService) publish(eventType string, telegramUserID, robloxID int64, username string) {
	s.Hub.Publish(realtime.Event{
		Type:           eventType,
		TelegramUserID: telegramUserID,
		RobloxID:       robloxID,
		RobloxUsername: username,
		At:             time.Now().UTC(),
	})
}
