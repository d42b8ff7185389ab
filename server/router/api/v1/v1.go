// Package v1 exposes the REST API: conversation management, message
// dispatch, missing-inputs submission, and feedback collection.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/svllm/svllm/chat"
	"github.com/svllm/svllm/internal/profile"
	"github.com/svllm/svllm/store"
)

// maxConcurrentDispatches bounds how many provider calls can be in flight at
// once across all conversations.
const maxConcurrentDispatches = 8

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Session *chat.Session

	dispatchSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, session *chat.Session) *APIV1Service {
	return &APIV1Service{
		Profile:           profile,
		Store:             store,
		Session:           session,
		dispatchSemaphore: semaphore.NewWeighted(maxConcurrentDispatches),
	}
}

func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.GET("/conversations", s.listConversations)
	g.POST("/conversations", s.createConversation)
	g.GET("/conversations/:id", s.getConversation)
	g.PATCH("/conversations/:id", s.renameConversation)
	g.DELETE("/conversations/:id", s.deleteConversation)
	g.POST("/conversations/:id/select", s.selectConversation)
	g.GET("/conversations/:id/draft", s.getDraft)
	g.PUT("/conversations/:id/draft", s.updateDraft)
	g.POST("/conversations/:id/missing-inputs", s.submitMissingInputs)

	g.POST("/chat/messages", s.sendMessage)
	g.GET("/chat/model", s.getModel)
	g.PUT("/chat/model", s.setModel)

	g.POST("/feedback", s.submitFeedback)
	g.GET("/feedback", s.listFeedback)
	g.GET("/feedback/stats", s.getFeedbackStats)
	g.DELETE("/feedback", s.clearFeedback)
}

type conversationSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CreatedAt   string `json:"createdAt"`
	LastUpdated string `json:"lastUpdated"`
	Messages    int    `json:"messages"`
	Active      bool   `json:"active"`
	Loading     bool   `json:"loading"`
}

func (s *APIV1Service) listConversations(c echo.Context) error {
	activeID := s.Session.ActiveID()
	conversations := s.Session.List()

	out := make([]conversationSummary, len(conversations))
	for i, conversation := range conversations {
		out[i] = conversationSummary{
			ID:          conversation.ID,
			Title:       conversation.Title,
			CreatedAt:   conversation.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			LastUpdated: conversation.LastUpdated.Format("2006-01-02T15:04:05.000Z07:00"),
			Messages:    len(conversation.Messages),
			Active:      conversation.ID == activeID,
			Loading:     s.Session.IsLoading(conversation.ID),
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createConversation(c echo.Context) error {
	conversation := s.Session.Create(c.Request().Context())
	return c.JSON(http.StatusCreated, conversation)
}

func (s *APIV1Service) getConversation(c echo.Context) error {
	conversation := s.Session.Get(c.Param("id"))
	if conversation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conversation)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *APIV1Service) renameConversation(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title must not be empty")
	}
	if err := s.Session.Rename(c.Request().Context(), c.Param("id"), req.Title); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, s.Session.Get(c.Param("id")))
}

func (s *APIV1Service) deleteConversation(c echo.Context) error {
	if err := s.Session.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) selectConversation(c echo.Context) error {
	if err := s.Session.Select(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type draftPayload struct {
	Text string `json:"text"`
}

func (s *APIV1Service) getDraft(c echo.Context) error {
	if s.Session.Get(c.Param("id")) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, draftPayload{Text: s.Session.Draft(c.Param("id"))})
}

func (s *APIV1Service) updateDraft(c echo.Context) error {
	if s.Session.Get(c.Param("id")) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	var req draftPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	s.Session.UpdateDraft(c.Param("id"), req.Text)
	return c.NoContent(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *APIV1Service) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	ctx := c.Request().Context()
	if err := s.dispatchSemaphore.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server busy")
	}
	defer s.dispatchSemaphore.Release(1)

	conversation, err := s.Session.SendMessage(ctx, req.Content)
	if err != nil {
		var cfgErr *chat.ConfigurationError
		if errors.As(err, &cfgErr) {
			return echo.NewHTTPError(http.StatusPreconditionFailed, cfgErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if conversation == nil {
		// Whitespace-only input, or the conversation was deleted mid-flight.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, conversation)
}

type missingInputsRequest struct {
	Values map[string]string `json:"values"`
}

func (s *APIV1Service) submitMissingInputs(c echo.Context) error {
	var req missingInputsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	ctx := c.Request().Context()
	if err := s.dispatchSemaphore.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server busy")
	}
	defer s.dispatchSemaphore.Release(1)

	conversation, err := s.Session.SubmitMissingInputs(ctx, c.Param("id"), req.Values)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if conversation == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, conversation)
}

type modelPayload struct {
	Model string `json:"model"`
}

func (s *APIV1Service) getModel(c echo.Context) error {
	return c.JSON(http.StatusOK, modelPayload{Model: s.Session.Model()})
}

func (s *APIV1Service) setModel(c echo.Context) error {
	var req modelPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "model must not be empty")
	}
	s.Session.SetModel(req.Model)
	return c.NoContent(http.StatusNoContent)
}

type feedbackRequest struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	Text      string `json:"text"`
}

func (s *APIV1Service) submitFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Reaction == "" && req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "feedback must carry a reaction or text")
	}

	feedback := &store.Feedback{
		MessageID: req.MessageID,
		Reaction:  req.Reaction,
		Text:      req.Text,
	}
	if err := s.Store.AppendFeedback(c.Request().Context(), feedback); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store feedback")
	}
	return c.JSON(http.StatusCreated, feedback)
}

func (s *APIV1Service) listFeedback(c echo.Context) error {
	list, err := s.Store.ListFeedback(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load feedback")
	}
	return c.JSON(http.StatusOK, list)
}

func (s *APIV1Service) getFeedbackStats(c echo.Context) error {
	stats, err := s.Store.GetFeedbackStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load feedback stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *APIV1Service) clearFeedback(c echo.Context) error {
	if err := s.Store.ClearFeedback(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear feedback")
	}
	return c.NoContent(http.StatusNoContent)
}
