package livestream

import (
	"net/http"
	"strconv"
	"time"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service   *LivestreamService
	scheduler *ActivationScheduler
}

func NewHandler(service *LivestreamService, scheduler *ActivationScheduler) *Handler {
	return &Handler{
		service:   service,
		scheduler: scheduler,
	}
}

func getAccountIDFromContext(c echo.Context) (string, error) {
	accountID, ok := c.Get("account_id").(string)
	if !ok || accountID == "" {
		return "", utils.ErrUnauthenticated
	}
	return accountID, nil
}

func parseLivestreamID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, utils.NewValidationError("invalid livestream id")
	}
	return id, nil
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"data":    data,
	}
}

// StartLivestream handles POST /api/livestreams
func (h *Handler) StartLivestream(c echo.Context) error {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		return err
	}

	var request struct {
		Title           string  `json:"title"`
		Description     *string `json:"description"`
		PinnedComment   *string `json:"pinned_comment"`
		EntityAccountID string  `json:"entity_account_id"`
		EntityID        string  `json:"entity_id"`
		EntityType      string  `json:"entity_type"`
	}
	if err := c.Bind(&request); err != nil {
		return utils.NewValidationError("invalid request body")
	}

	ls, cred, err := h.service.StartLivestream(StartParams{
		Title:           request.Title,
		Description:     request.Description,
		PinnedComment:   request.PinnedComment,
		HostAccountID:   accountID,
		EntityAccountID: request.EntityAccountID,
		EntityID:        request.EntityID,
		EntityType:      request.EntityType,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, envelope(map[string]interface{}{
		"livestream": ls,
		"credential": cred,
	}))
}

// EndLivestream handles POST /api/livestreams/:id/end
func (h *Handler) EndLivestream(c echo.Context) error {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseLivestreamID(c)
	if err != nil {
		return err
	}

	var request struct {
		RecordingURL *string `json:"recording_url"`
	}
	if err := c.Bind(&request); err != nil {
		return utils.NewValidationError("invalid request body")
	}

	ls, err := h.service.EndLivestream(id, accountID, request.RecordingURL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(ls))
}

// CreateScheduledLivestream handles POST /api/livestreams/scheduled
func (h *Handler) CreateScheduledLivestream(c echo.Context) error {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		return err
	}

	var request struct {
		Title              string  `json:"title"`
		Description        *string `json:"description"`
		ScheduledStartTime string  `json:"scheduled_start_time"`
		Settings           *string `json:"settings"`
		EntityAccountID    string  `json:"entity_account_id"`
		EntityID           string  `json:"entity_id"`
		EntityType         string  `json:"entity_type"`
	}
	if err := c.Bind(&request); err != nil {
		return utils.NewValidationError("invalid request body")
	}

	startTime, err := time.Parse(time.RFC3339, request.ScheduledStartTime)
	if err != nil {
		return utils.ErrInvalidSchedule
	}

	ls, err := h.service.CreateScheduledLivestream(ScheduleParams{
		Title:              request.Title,
		Description:        request.Description,
		ScheduledStartTime: startTime,
		Settings:           request.Settings,
		HostAccountID:      accountID,
		EntityAccountID:    request.EntityAccountID,
		EntityID:           request.EntityID,
		EntityType:         request.EntityType,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope(ls))
}

// ActivateScheduledLivestream handles POST /api/livestreams/scheduled/:id/activate
func (h *Handler) ActivateScheduledLivestream(c echo.Context) error {
	if _, err := getAccountIDFromContext(c); err != nil {
		return err
	}
	id, err := parseLivestreamID(c)
	if err != nil {
		return err
	}

	ls, cred, err := h.service.ActivateScheduledLivestream(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"livestream": ls,
		"credential": cred,
	}))
}

// CancelScheduledLivestream handles DELETE /api/livestreams/scheduled/:id
func (h *Handler) CancelScheduledLivestream(c echo.Context) error {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseLivestreamID(c)
	if err != nil {
		return err
	}

	ls, err := h.service.CancelScheduledLivestream(id, accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(ls))
}

// GetActiveLivestreams handles GET /api/livestreams/active
func (h *Handler) GetActiveLivestreams(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	livestreams, err := h.service.GetActiveLivestreams(limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(livestreams))
}

// GetLivestreamByChannel handles GET /api/livestreams/channel/:channel
func (h *Handler) GetLivestreamByChannel(c echo.Context) error {
	ls, err := h.service.GetLivestreamByChannel(c.Param("channel"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(ls))
}

// GetLivestreamsByHost handles GET /api/livestreams/host/:hostId
func (h *Handler) GetLivestreamsByHost(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	livestreams, err := h.service.GetLivestreamsByHost(c.Param("hostId"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(livestreams))
}

// GetScheduledLivestreams handles GET /api/livestreams/scheduled
func (h *Handler) GetScheduledLivestreams(c echo.Context) error {
	livestreams, err := h.service.GetScheduledLivestreams()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(livestreams))
}

// GetMyScheduledLivestreams handles GET /api/livestreams/scheduled/mine
func (h *Handler) GetMyScheduledLivestreams(c echo.Context) error {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		return err
	}

	livestreams, err := h.service.GetScheduledLivestreamsByHost(accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(livestreams))
}

// IncrementView handles POST /api/livestreams/:id/view
func (h *Handler) IncrementView(c echo.Context) error {
	id, err := parseLivestreamID(c)
	if err != nil {
		return err
	}

	ls, err := h.service.IncrementViewCount(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"view_count": ls.ViewCount,
	}))
}

// IssueViewerToken handles POST /api/livestreams/channel/:channel/token
func (h *Handler) IssueViewerToken(c echo.Context) error {
	if _, err := getAccountIDFromContext(c); err != nil {
		return err
	}

	cred, err := h.service.IssueViewerCredential(c.Param("channel"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(cred))
}

// RunScheduler handles POST /api/scheduler/run
func (h *Handler) RunScheduler(c echo.Context) error {
	if _, err := getAccountIDFromContext(c); err != nil {
		return err
	}

	results, err := h.scheduler.RunNow()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(results))
}
