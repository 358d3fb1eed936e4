package models

import "time"

// User — служебная учётка оператора REST-панели. Создаётся миграцией,
// CRUD-поверхности для неё нет.
type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // не отдаём наружу
	RoleID       int    `json:"role_id"`

	// refresh-хранение в БД
	RefreshToken     *string    `json:"-"` // храним opaque строку
	RefreshExpiresAt *time.Time `json:"-"` // срок действия
	RefreshRevoked   bool       `json:"-"` // если понадобится отозвать
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
