package services

import (
	"context"
	"fmt"
	"time"

	"robolink/internal/models"
	"robolink/internal/pdf"
	"robolink/internal/repositories"
)

// лимиты PDF-выгрузки: привязки и последние перепривязки
const (
	exportBindingsLimit = 200
	exportHistoryLimit  = 50
)

type ReportService struct {
	Repo repositories.VerificationRepository
	Gen  pdf.Generator
}

func NewReportService(repo repositories.VerificationRepository, gen pdf.Generator) *ReportService {
	return &ReportService{Repo: repo, Gen: gen}
}

func (s *ReportService) Summary(ctx context.Context) (*models.VerificationSummary, error) {
	verified, err := s.Repo.CountBindings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bindings: %w", err)
	}
	pending, err := s.Repo.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	history, err := s.Repo.CountHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	return &models.VerificationSummary{
		Verified: verified,
		Pending:  pending,
		History:  history,
	}, nil
}

// ExportPDF — собирает данные и отдаёт абсолютный путь к готовому файлу.
func (s *ReportService) ExportPDF(ctx context.Context) (string, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return "", err
	}
	bindings, err := s.Repo.ListBindings(ctx, exportBindingsLimit, 0)
	if err != nil {
		return "", fmt.Errorf("list bindings: %w", err)
	}
	recent, err := s.Repo.RecentHistory(ctx, exportHistoryLimit)
	if err != nil {
		return "", fmt.Errorf("recent history: %w", err)
	}

	data := pdf.ReportData{
		GeneratedAt: time.Now(),
		Verified:    sum.Verified,
		Pending:     sum.Pending,
		History:     sum.History,
	}
	for _, b := range bindings {
		rank := ""
		if b.GroupRank != nil {
			rank = *b.GroupRank
		}
		data.Bindings = append(data.Bindings, pdf.BindingRow{
			TelegramUserID: b.TelegramUserID,
			RobloxUsername: b.RobloxUsername,
			RobloxID:       b.RobloxID,
			GroupRank:      rank,
			VerifiedAt:     b.VerifiedAt,
		})
	}
	for _, e := range recent {
		data.Recent = append(data.Recent, pdf.HistoryRow{
			TelegramUserID: e.TelegramUserID,
			RobloxUsername: e.RobloxUsername,
			RobloxID:       e.RobloxID,
			VerifiedAt:     e.VerifiedAt,
			SupersededAt:   e.SupersededAt,
		})
	}

	path, err := s.Gen.GenerateVerificationReport(data)
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	return path, nil
}
