package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"robolink/internal/services"
)

// VerifyHandler — операторская поверхность привязки. Целевой пользователь
// всегда передаётся явно (user_id), оператор действует от его имени.
type VerifyHandler struct {
	Verify *services.VerificationService
}

func NewVerifyHandler(s *services.VerificationService) *VerifyHandler { return &VerifyHandler{Verify: s} }

// @Summary      Начать привязку
// @Description  Резолвит ник Roblox и выдаёт код для профиля. Повторный вызов заменяет заявку целиком.
// @Tags         Verify
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.PendingVerification
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     BearerAuth
// @Router       /verify/start [post]
func (h *VerifyHandler) Start(c *gin.Context) {
	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		ChatID   int64  `json:"chat_id"`
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Verify.Start(c.Request.Context(), req.UserID, req.ChatID, req.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Проверить профиль и завершить привязку
// @Description  Ищет код в описании профиля. Неудача ничего не меняет, можно повторять.
// @Tags         Verify
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.Verification
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     BearerAuth
// @Router       /verify/complete [post]
func (h *VerifyHandler) Complete(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.Verify.Complete(c.Request.Context(), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary      Перепривязка на другой аккаунт
// @Tags         Verify
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.PendingVerification
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /verify/reverify [post]
func (h *VerifyHandler) Reverify(c *gin.Context) {
	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		ChatID   int64  `json:"chat_id"`
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Verify.Reverify(c.Request.Context(), req.UserID, req.ChatID, req.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Отменить активную заявку
// @Tags         Verify
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Security     BearerAuth
// @Router       /verify/cancel [post]
func (h *VerifyHandler) Cancel(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Verify.Cancel(c.Request.Context(), req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification cancelled"})
}

// @Summary      Статус пользователя
// @Tags         Verify
// @Produce      json
// @Param        user_id  path  int  true  "Telegram ID"
// @Success      200  {object}  models.VerificationStatus
// @Security     BearerAuth
// @Router       /verify/status/{user_id} [get]
func (h *VerifyHandler) Status(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	st, err := h.Verify.Status(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      История привязок пользователя
// @Tags         Verify
// @Produce      json
// @Param        user_id  path  int  true  "Telegram ID"
// @Success      200  {array}  models.VerificationHistoryEntry
// @Security     BearerAuth
// @Router       /verify/history/{user_id} [get]
func (h *VerifyHandler) History(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	entries, err := h.Verify.History(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// writeError — единая карта сентинелов на HTTP-статусы.
func (h *VerifyHandler) writeError(c *gin.Context, err error) {
	switch err {
	case services.ErrUsernameNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "roblox username not found"})
	case services.ErrProviderUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "roblox unavailable, try again later"})
	case services.ErrCodeNotFound:
		c.JSON(http.StatusBadRequest, gin.H{"error": "code not found in profile, check and retry"})
	case services.ErrAlreadyVerified:
		c.JSON(http.StatusConflict, gin.H{"error": "already verified, use reverify to switch account"})
	case services.ErrNotVerified:
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not verified yet"})
	case services.ErrNoPending:
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending verification"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
	}
}
