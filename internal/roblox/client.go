package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

var (
	// ErrUserNotFound — ника нет (или аккаунт забанен и отфильтрован API).
	ErrUserNotFound = errors.New("roblox user not found")
	// ErrUnavailable — сеть/5xx/429: временная недоступность, можно повторить позже.
	ErrUnavailable = errors.New("roblox api unavailable")
)

const defaultTimeout = 10 * time.Second

// Client — клиент публичного Roblox API. Один bounded http.Client на все
// вызовы, без автоматических ретраев: повтор — решение вызывающего.
type Client struct {
	UsersURL  string // https://users.roblox.com
	GroupsURL string // https://groups.roblox.com
	GroupID   int64  // отслеживаемая группа; 0 = синхронизация рангов выключена
	client    *http.Client
}

func NewClient(usersURL, groupsURL string, groupID int64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		UsersURL:  usersURL,
		GroupsURL: groupsURL,
		GroupID:   groupID,
		client:    &http.Client{Timeout: timeout},
	}
}

type resolveRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

type resolveResponse struct {
	Data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// ResolveUsername — ник -> числовой id. Пустой data в ответе означает,
// что такого пользователя нет.
func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	body, _ := json.Marshal(resolveRequest{
		Usernames:          []string{username},
		ExcludeBannedUsers: true,
	})
	url := c.UsersURL + "/v1/usernames/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[roblox][resolve][err] http: %v", err)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[roblox][resolve] http_status=%d username=%q", resp.StatusCode, username)
		return 0, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var result resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if len(result.Data) == 0 {
		return 0, ErrUserNotFound
	}

	log.Printf("[roblox][resolve] username=%q -> id=%d", username, result.Data[0].ID)
	return result.Data[0].ID, nil
}

type userResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProfileDescription — текст «About» профиля. Пустое описание — это не
// ошибка, просто пустая строка.
func (c *Client) ProfileDescription(ctx context.Context, userID int64) (string, error) {
	url := fmt.Sprintf("%s/v1/users/%d", c.UsersURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("profile request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[roblox][profile][err] http: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[roblox][profile] http_status=%d user_id=%d", resp.StatusCode, userID)
		return "", fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var result userResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return result.Description, nil
}

// GroupRole — роль пользователя в отслеживаемой группе.
type GroupRole struct {
	Member bool
	Name   string // имя роли, например "Sergeant"
	Rank   int    // числовой ранг внутри группы
}

type groupRolesResponse struct {
	Data []struct {
		Group struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"group"`
		Role struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Rank int    `json:"rank"`
		} `json:"role"`
	} `json:"data"`
}

// GroupRole — ищем нашу группу в списке групп пользователя.
// Не состоит в группе — Member=false, это штатный результат.
func (c *Client) GroupRole(ctx context.Context, userID int64) (*GroupRole, error) {
	url := fmt.Sprintf("%s/v2/users/%d/groups/roles", c.GroupsURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("group roles request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[roblox][groups][err] http: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[roblox][groups] http_status=%d user_id=%d", resp.StatusCode, userID)
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var result groupRolesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	for _, g := range result.Data {
		if g.Group.ID == c.GroupID {
			log.Printf("[roblox][groups] user_id=%d group=%d role=%q rank=%d", userID, c.GroupID, g.Role.Name, g.Role.Rank)
			return &GroupRole{Member: true, Name: g.Role.Name, Rank: g.Role.Rank}, nil
		}
	}
	return &GroupRole{Member: false}, nil
}
