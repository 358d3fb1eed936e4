package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robolink/internal/models"
	"robolink/internal/repositories"
	"robolink/internal/roblox"
)

func TestRankPrefixTable(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"Recruit", "RCT"},
		{"Private", "PTE"},
		{"Lance Corporal", "LCP"},
		{"Corporal", "CPL"},
		{"Sergeant", "SGT"},
		{"Staff Sergeant", "SSG"},
		{"Warrant Officer Class 2", "WO2"},
		{"Warrant Officer Class 1", "WO1"},
		{"Second Lieutenant", "2LT"},
		{"Lieutenant", "LT"},
		{"Captain", "CPT"},
		{"Major", "MAJ"},
		{"Lieutenant Colonel", "LTC"},
		{"Colonel", "COL"},
		{"Brigadier", "BRG"},
		{"Major General", "MG"},
		{"Lieutenant General", "LG"},
		{"General", "GEN"},
		{"Field Marshal", "FM"},
	}
	for _, tt := range tests {
		got := rankPrefix(&roblox.GroupRole{Member: true, Name: tt.role})
		assert.Equal(t, tt.want, got, "role %q", tt.role)
	}
}

func TestRankPrefixCivilian(t *testing.T) {
	assert.Equal(t, "CIV", rankPrefix(nil))
	assert.Equal(t, "CIV", rankPrefix(&roblox.GroupRole{Member: false}))
	assert.Equal(t, "CIV", rankPrefix(&roblox.GroupRole{Member: true, Name: "Guest Role"}))
}

type fakeEmail struct {
	alerts []string
}

func (f *fakeEmail) SendRoleSyncFailedAlert(to, robloxUsername string, telegramUserID int64, cause error) error {
	f.alerts = append(f.alerts, fmt.Sprintf("%s:%s:%d", to, robloxUsername, telegramUserID))
	return nil
}

func bindingFixture(ctx context.Context, t *testing.T, repo repositories.VerificationRepository) *models.Verification {
	t.Helper()
	v := &models.Verification{
		TelegramUserID: 1,
		RobloxID:       42,
		RobloxUsername: "Alice123",
		VerifiedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.SaveBinding(ctx, v))
	return v
}

func TestSyncAfterVerifyWritesRank(t *testing.T) {
	ctx := context.Background()
	const groupID = 11925205

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"group":{"id":%d,"name":"CBA"},"role":{"id":7,"name":"Sergeant","rank":40}}]}`, groupID)
	}))
	t.Cleanup(srv.Close)

	repo := repositories.NewMemVerificationRepository()
	v := bindingFixture(ctx, t, repo)

	svc := NewRoleSyncService(repo, roblox.NewClient(srv.URL, srv.URL, groupID, 2*time.Second), nil, "")
	rank, err := svc.SyncAfterVerify(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "SGT", rank)

	b, err := repo.GetBinding(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, b.GroupRank)
	assert.Equal(t, "SGT", *b.GroupRank)
}

func TestSyncAfterVerifyNonMemberIsCivilian(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	t.Cleanup(srv.Close)

	repo := repositories.NewMemVerificationRepository()
	v := bindingFixture(ctx, t, repo)

	svc := NewRoleSyncService(repo, roblox.NewClient(srv.URL, srv.URL, 11925205, 2*time.Second), nil, "")
	rank, err := svc.SyncAfterVerify(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "CIV", rank)
}

func TestSyncAfterVerifyAlertsOnFailure(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	repo := repositories.NewMemVerificationRepository()
	v := bindingFixture(ctx, t, repo)

	email := &fakeEmail{}
	svc := NewRoleSyncService(repo, roblox.NewClient(srv.URL, srv.URL, 11925205, 2*time.Second), email, "duty@example.com")

	_, err := svc.SyncAfterVerify(ctx, v)
	require.Error(t, err)
	require.Len(t, email.alerts, 1)
	assert.Equal(t, "duty@example.com:Alice123:1", email.alerts[0])

	// ранг не записан, привязка цела
	b, err := repo.GetBinding(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, b.GroupRank)
	assert.Equal(t, "Alice123", b.RobloxUsername)
}

// Без адресата алертов сбой остаётся только в логе.
func TestSyncAfterVerifyNoAlertTarget(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	repo := repositories.NewMemVerificationRepository()
	v := bindingFixture(ctx, t, repo)

	svc := NewRoleSyncService(repo, roblox.NewClient(srv.URL, srv.URL, 11925205, 2*time.Second), nil, "")
	_, err := svc.SyncAfterVerify(ctx, v)
	require.Error(t, err)
}
