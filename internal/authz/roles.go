package authz

// Роли служебных учёток REST-панели.
const (
	RoleOperator = 20
	RoleAudit    = 30
	RoleAdmin    = 50
)

func IsReadOnly(roleID int) bool {
	return roleID == RoleAudit
}

// Authorizer — решает, кому в чате можно запускать привязку за другого
// пользователя (ответом на его сообщение).
type Authorizer interface {
	CanVerifyOthers(telegramUserID int64) bool
}

// StaticOperators — реализация по списку id из конфига.
type StaticOperators struct {
	ids map[int64]struct{}
}

func NewStaticOperators(ids []int64) *StaticOperators {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &StaticOperators{ids: set}
}

func (s *StaticOperators) CanVerifyOthers(telegramUserID int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[telegramUserID]
	return ok
}
