package models

import "time"

// PendingVerification — активная заявка на привязку: выданный код и
// зафиксированный на старте roblox id. На одного пользователя Telegram
// существует максимум одна запись; повторный старт полностью её заменяет.
type PendingVerification struct {
	TelegramUserID int64     `json:"telegram_user_id"`
	ChatID         int64     `json:"chat_id"`
	RobloxUsername string    `json:"roblox_username"`
	RobloxID       int64     `json:"roblox_id"`
	Code           string    `json:"code"`
	IssuedAt       time.Time `json:"issued_at"`
}

// Verification — текущая подтверждённая привязка, одна на пользователя.
// GroupRank заполняется синхронизацией рангов после подтверждения.
type Verification struct {
	TelegramUserID int64     `json:"telegram_user_id"`
	RobloxID       int64     `json:"roblox_id"`
	RobloxUsername string    `json:"roblox_username"`
	GroupRank      *string   `json:"group_rank,omitempty"`
	VerifiedAt     time.Time `json:"verified_at"`
}

// VerificationHistoryEntry — вытесненная привязка. SupersededAt всегда равен
// VerifiedAt привязки, которая её заменила.
type VerificationHistoryEntry struct {
	ID             int64     `json:"id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	RobloxID       int64     `json:"roblox_id"`
	RobloxUsername string    `json:"roblox_username"`
	VerifiedAt     time.Time `json:"verified_at"`
	SupersededAt   time.Time `json:"superseded_at"`
}

// VerificationStatus — сводка по пользователю для /status и REST.
type VerificationStatus struct {
	State   string               `json:"state"` // unverified | pending | verified | verified_pending
	Pending *PendingVerification `json:"pending,omitempty"`
	Binding *Verification        `json:"binding,omitempty"`
}

// VerificationSummary — счётчики для отчётов.
type VerificationSummary struct {
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	History  int `json:"history"`
}
