package services

import (
	"context"
	"fmt"
	"log"

	"robolink/internal/models"
	"robolink/internal/repositories"
	"robolink/internal/roblox"
)

// Префиксы рангов группы (NATO-стиль). Кто не в группе или с неизвестной
// ролью — гражданский.
var rankPrefixes = map[string]string{
	// рядовой состав
	"Recruit":                 "RCT",
	"Private":                 "PTE",
	"Lance Corporal":          "LCP",
	"Corporal":                "CPL",
	"Sergeant":                "SGT",
	"Staff Sergeant":          "SSG",
	"Warrant Officer Class 2": "WO2",
	"Warrant Officer Class 1": "WO1",

	// офицеры
	"Second Lieutenant":  "2LT",
	"Lieutenant":         "LT",
	"Captain":            "CPT",
	"Major":              "MAJ",
	"Lieutenant Colonel": "LTC",
	"Colonel":            "COL",
	"Brigadier":          "BRG",
	"Major General":      "MG",
	"Lieutenant General": "LG",
	"General":            "GEN",

	// особые
	"Field Marshal": "FM",
}

const civilianPrefix = "CIV"

func rankPrefix(role *roblox.GroupRole) string {
	if role == nil || !role.Member {
		return civilianPrefix
	}
	if p, ok := rankPrefixes[role.Name]; ok {
		return p
	}
	return civilianPrefix
}

// RoleSyncService — после подтверждения тянет роль пользователя в группе и
// пишет ранг в привязку. Сбой не фатален: алерт на почту и лог, источником
// истины остаётся сама привязка.
type RoleSyncService struct {
	Repo    repositories.VerificationRepository
	Roblox  *roblox.Client
	Email   EmailService // может быть nil
	AlertTo string
}

func NewRoleSyncService(repo repositories.VerificationRepository, rbx *roblox.Client, email EmailService, alertTo string) *RoleSyncService {
	return &RoleSyncService{Repo: repo, Roblox: rbx, Email: email, AlertTo: alertTo}
}

func (s *RoleSyncService) SyncAfterVerify(ctx context.Context, v *models.Verification) (string, error) {
	role, err := s.Roblox.GroupRole(ctx, v.RobloxID)
	if err != nil {
		s.alert(v, err)
		return "", fmt.Errorf("group role fetch: %w", err)
	}

	rank := rankPrefix(role)
	if err := s.Repo.SetGroupRank(ctx, v.TelegramUserID, rank); err != nil {
		s.alert(v, err)
		return "", fmt.Errorf("store rank: %w", err)
	}

	roleName := "none"
	if role.Member {
		roleName = role.Name
	}
	log.Printf("[rolesync] user_id=%d roblox_id=%d role=%q rank=%s", v.TelegramUserID, v.RobloxID, roleName, rank)
	return rank, nil
}

func (s *RoleSyncService) alert(v *models.Verification, cause error) {
	if s.Email == nil || s.AlertTo == "" {
		return
	}
	if err := s.Email.SendRoleSyncFailedAlert(s.AlertTo, v.RobloxUsername, v.TelegramUserID, cause); err != nil {
		log.Printf("[rolesync][alert] send failed: %v", err)
	}
}
