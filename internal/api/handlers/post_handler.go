package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	job "postpilot/internal/jobs"
	"postpilot/internal/queue"
	"postpilot/internal/repository"
	"postpilot/internal/service"
	"postpilot/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	lc          service.LifecycleService
	ps          service.PublishService
	hist        repository.PostingHistoryRepository
	detector    *job.DuePostJob
	AsynqClient *asynq.Client
}

func NewPostHandler(
	s service.PostService,
	lc service.LifecycleService,
	ps service.PublishService,
	hist repository.PostingHistoryRepository,
	detector *job.DuePostJob,
	asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: s, lc: lc, ps: ps, hist: hist, detector: detector, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	orgID := GetOrgID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, publishNow, err := h.s.Schedule(c.Context(), userID, orgID, &pc)
	if err != nil {
		return errorResponse(c, err)
	}

	// A post scheduled for "now" skips the detector and goes straight
	// to the orchestrator.
	if publishNow {
		if err := queue.EnqueuePublish(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, 0); err != nil {
			slog.Error(err.Error())
		}
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	if postID != "" {
		post, err := h.s.PostInfo(c.Context(), postID, userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	var upd transfer.PostUpdate
	if err := c.BodyParser(&upd); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, err := h.s.Update(c.Context(), userID, postID, &upd)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// ReschedulePost moves a still-scheduled post to a new date and time in
// its stored timezone.
func (h *PostHandler) ReschedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	var body struct {
		ScheduledDate string `json:"scheduled_date"`
		ScheduledTime string `json:"scheduled_time"`
	}
	if err := c.BodyParser(&body); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if _, err := h.s.PostInfo(c.Context(), postID, userID); err != nil {
		return errorResponse(c, err)
	}

	post, err := h.lc.Reschedule(c.Context(), postID, body.ScheduledDate, body.ScheduledTime)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	if err := h.s.Remove(c.Context(), userID, postID); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	if _, err := h.s.PostInfo(c.Context(), postID, userID); err != nil {
		return errorResponse(c, err)
	}

	if err := h.lc.Cancel(c.Context(), postID); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// PublishNow enqueues one immediate publish attempt. The caller follows
// along on the progress endpoint.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	if _, err := h.s.PostInfo(c.Context(), postID, userID); err != nil {
		return errorResponse(c, err)
	}

	if err := queue.EnqueuePublish(h.AsynqClient, queue.PublishPostPayload{PostID: postID}, 0); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error submitting post for publishing",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Publish started",
	})
}

func (h *PostHandler) PublishProgress(c *fiber.Ctx) error {
	postID := c.Query("id")

	progress, ok := h.ps.Progress(postID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No publish in progress for this post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(progress)
}

func (h *PostHandler) PostingHistory(c *fiber.Ctx) error {
	userID := GetUserID(c)

	history, err := h.hist.GetByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load posting history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(history)
}

func (h *PostHandler) DuePosts(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.detector.Latest())
}

func (h *PostHandler) PublishDuePosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	submitted, err := h.detector.PublishAllDue(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error submitting due posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"submitted": submitted,
	})
}

func errorResponse(c *fiber.Ctx, err error) error {
	var validation *service.ValidationError
	var conflict *service.ConflictError

	status := fiber.StatusInternalServerError
	if errors.As(err, &validation) {
		status = fiber.StatusBadRequest
	} else if errors.As(err, &conflict) {
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
