package main

import "robolink/internal/app"

// @title           Robolink API
// @version         1.0
// @description     Привязка Telegram-аккаунтов к Roblox: коды подтверждения, проверка профиля, ранги группы, отчёты.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Формат: "Bearer {token}"

func main() {
	app.Run()
}
