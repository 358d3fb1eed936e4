package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendRoleSyncFailedAlert(to, robloxUsername string, telegramUserID int64, cause error) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

// SendRoleSyncFailedAlert — письмо дежурному: привязка состоялась, но ранг
// не синхронизировался и требует ручного прохода.
func (s *emailService) SendRoleSyncFailedAlert(to, robloxUsername string, telegramUserID int64, cause error) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Robolink: role sync failed")

	body := fmt.Sprintf(`
		<h3>Не удалось синхронизировать ранг</h3>
		<p>Привязка подтверждена, но ранг группы не обновился.</p>
		<p>Telegram ID: <strong>%d</strong><br>Roblox: <strong>%s</strong></p>
		<p>Причина: %v</p>
		<p>Ранг нужно проставить вручную или перезапустить синхронизацию.</p>
	`, telegramUserID, robloxUsername, cause)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send role sync alert: %w", err)
	}

	return nil
}
