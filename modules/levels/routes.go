package levels

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/levelqueue/handler"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

type levelRequest struct {
	LevelID string `path:"levelId" json:"-"`
}

type createLevelRequest struct {
	GameID string   `json:"gameId"`
	Name   string   `json:"name"`
	Data   []string `json:"data"`
}

type updateLevelRequest struct {
	LevelID    string    `path:"levelId" json:"-"`
	Name       *string   `json:"name"`
	Data       *[]string `json:"data"`
	LeastMoves *int      `json:"leastMoves"`
}

type scheduleRequest struct {
	LevelID   string `path:"levelId" json:"-"`
	PublishAt string `json:"publishAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type scheduleResponse struct {
	Message   string    `json:"message"`
	PublishAt time.Time `json:"publishAt"`
}

type publishResponse struct {
	Message string       `json:"message"`
	Level   *level.Level `json:"level"`
}

type recalcResponse struct {
	Queued int `json:"queued"`
}

// caller returns the user resolved by account.Middleware, or nil. A nil
// user fails every entitlement check.
func caller(ctx handler.Context) *account.User {
	u, _ := account.FromContext(ctx)
	return u
}

func (m *Module) createLevel(ctx handler.Context, req createLevelRequest) handler.Response {
	lvl, err := m.publisher.CreateDraft(ctx, caller(ctx), req.GameID, req.Name, req.Data)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(lvl, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) updateLevel(ctx handler.Context, req updateLevelRequest) handler.Response {
	lvl, err := m.publisher.UpdateDraft(ctx, caller(ctx), req.LevelID, level.DraftUpdate{
		Name:       req.Name,
		Data:       req.Data,
		LeastMoves: req.LeastMoves,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(lvl)
}

// editLevel sends editors of a scheduled level back to the drafts page.
func (m *Module) editLevel(ctx handler.Context, req levelRequest) handler.Response {
	lvl, err := m.publisher.EditableLevel(ctx, caller(ctx), req.LevelID)
	switch {
	case errors.Is(err, level.ErrLevelScheduled):
		return handler.RedirectWithCode(m.cfg.DraftsPath, http.StatusTemporaryRedirect)
	case err != nil:
		return m.fail(ctx, err)
	}
	return handler.JSON(lvl)
}

func (m *Module) publishLevel(ctx handler.Context, req levelRequest) handler.Response {
	lvl, err := m.publisher.PublishNow(ctx, caller(ctx), req.LevelID)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(publishResponse{Message: "Level published", Level: lvl})
}

func (m *Module) schedulePublish(ctx handler.Context, req scheduleRequest) handler.Response {
	user := caller(ctx)
	publishAt, err := time.Parse(time.RFC3339Nano, req.PublishAt)
	if err != nil {
		if err := m.scheduler.CanSchedule(user); err != nil {
			return m.fail(ctx, err)
		}
		return m.fail(ctx, level.ErrInvalidPublishDate)
	}

	at, err := m.scheduler.Schedule(ctx, user, req.LevelID, publishAt)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(scheduleResponse{
		Message:   "Level scheduled for publishing",
		PublishAt: at,
	})
}

func (m *Module) cancelSchedule(ctx handler.Context, req levelRequest) handler.Response {
	if err := m.scheduler.Cancel(ctx, caller(ctx), req.LevelID); err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(messageResponse{Message: "Scheduled publish canceled"})
}

// processQueue runs one dispatch cycle. Store failures answer 500 so the
// external scheduler retries on its next tick.
func (m *Module) processQueue(ctx handler.Context, _ struct{}) handler.Response {
	start := time.Now()
	res, err := m.runner.ProcessQueueMessages(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	m.logger.InfoContext(ctx, "dispatch cycle triggered",
		slog.Int("claimed", res.Claimed),
		slog.Int("completed", res.Completed),
		slog.Int("failed", res.Failed),
		logger.Duration(time.Since(start)),
	)
	return handler.JSON(res)
}

func (m *Module) recalcPlayAttempts(ctx handler.Context, _ struct{}) handler.Response {
	ids, err := m.publisher.RecalcPlayAttempts(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(recalcResponse{Queued: len(ids)})
}
