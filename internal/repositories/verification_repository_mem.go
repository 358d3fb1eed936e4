package repositories

import (
	"context"
	"sort"
	"sync"

	"robolink/internal/models"
)

// memVerificationRepository — in-memory реализация для режима без БД и для
// тестов. Семантика та же, что у Postgres-версии: SaveBinding атомарно
// архивирует старую привязку и убирает pending.
type memVerificationRepository struct {
	mu       sync.RWMutex
	pending  map[int64]models.PendingVerification
	bindings map[int64]models.Verification
	history  []models.VerificationHistoryEntry
	nextID   int64
}

func NewMemVerificationRepository() VerificationRepository {
	return &memVerificationRepository{
		pending:  make(map[int64]models.PendingVerification),
		bindings: make(map[int64]models.Verification),
		nextID:   1,
	}
}

func (r *memVerificationRepository) UpsertPending(_ context.Context, p *models.PendingVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.TelegramUserID] = *p
	return nil
}

func (r *memVerificationRepository) GetPending(_ context.Context, telegramUserID int64) (*models.PendingVerification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pending[telegramUserID]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (r *memVerificationRepository) DeletePending(_ context.Context, telegramUserID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, telegramUserID)
	return nil
}

func (r *memVerificationRepository) GetBinding(_ context.Context, telegramUserID int64) (*models.Verification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.bindings[telegramUserID]
	if !ok {
		return nil, nil
	}
	cp := v
	if v.GroupRank != nil {
		s := *v.GroupRank
		cp.GroupRank = &s
	}
	return &cp, nil
}

func (r *memVerificationRepository) SaveBinding(_ context.Context, v *models.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.bindings[v.TelegramUserID]; ok {
		r.history = append(r.history, models.VerificationHistoryEntry{
			ID:             r.nextID,
			TelegramUserID: old.TelegramUserID,
			RobloxID:       old.RobloxID,
			RobloxUsername: old.RobloxUsername,
			VerifiedAt:     old.VerifiedAt,
			SupersededAt:   v.VerifiedAt,
		})
		r.nextID++
	}
	r.bindings[v.TelegramUserID] = *v
	delete(r.pending, v.TelegramUserID)
	return nil
}

func (r *memVerificationRepository) SetGroupRank(_ context.Context, telegramUserID int64, rank string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.bindings[telegramUserID]
	if !ok {
		return nil
	}
	v.GroupRank = &rank
	r.bindings[telegramUserID] = v
	return nil
}

func (r *memVerificationRepository) History(_ context.Context, telegramUserID int64) ([]*models.VerificationHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*models.VerificationHistoryEntry
	for i := range r.history {
		if r.history[i].TelegramUserID == telegramUserID {
			cp := r.history[i]
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SupersededAt.Before(res[j].SupersededAt) })
	return res, nil
}

func (r *memVerificationRepository) ListBindings(_ context.Context, limit, offset int) ([]*models.Verification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*models.Verification, 0, len(r.bindings))
	for id := range r.bindings {
		v := r.bindings[id]
		cp := v
		if v.GroupRank != nil {
			s := *v.GroupRank
			cp.GroupRank = &s
		}
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].VerifiedAt.After(all[j].VerifiedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memVerificationRepository) RecentHistory(_ context.Context, limit int) ([]*models.VerificationHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*models.VerificationHistoryEntry, 0, len(r.history))
	for i := range r.history {
		cp := r.history[i]
		all = append(all, &cp)
	}
	// свежие первыми; при равном времени — по id, как в SQL-версии
	sort.Slice(all, func(i, j int) bool {
		if all[i].SupersededAt.Equal(all[j].SupersededAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].SupersededAt.After(all[j].SupersededAt)
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memVerificationRepository) CountPending(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending), nil
}

func (r *memVerificationRepository) CountBindings(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings), nil
}

func (r *memVerificationRepository) CountHistory(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history), nil
}
