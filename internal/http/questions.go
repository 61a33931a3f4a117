package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stackit/internal/domain"
)

type createQuestionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Tags        []string `json:"tags"`
}

type createTagRequest struct {
	Name string `json:"name"`
}

type QuestionResponse struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Author      *UserResponse    `json:"author,omitempty"`
	Tags        []string         `json:"tags"`
	Answers     []AnswerResponse `json:"answers,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

type QuestionListResponse struct {
	Questions []QuestionResponse `json:"questions"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

func (h *Handler) createQuestion(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.svc.Questions.CreateQuestion(c.Request.Context(), currentUser(c), req.Title, req.Description, req.Tags)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, questionToResponse(*question))
}

func (h *Handler) getQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	question, err := h.svc.Questions.GetQuestion(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := questionToResponse(*question)
	resp.Answers = make([]AnswerResponse, len(question.Answers))
	for i := range question.Answers {
		resp.Answers[i] = answerToResponse(question.Answers[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listQuestions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.svc.Questions.ListQuestions(c.Request.Context(), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := QuestionListResponse{
		Questions: make([]QuestionResponse, len(result.Questions)),
		Total:     result.Total,
		Page:      result.Page,
		Limit:     result.Limit,
	}
	for i := range result.Questions {
		resp.Questions[i] = questionToResponse(result.Questions[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.svc.Questions.ListTags(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagNames(tags))
}

// createTag accepts the name as JSON or as the tag_name query parameter.
func (h *Handler) createTag(c *gin.Context) {
	name := c.Query("tag_name")
	if name == "" {
		var req createTagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name = req.Name
	}

	tag, err := h.svc.Questions.CreateTag(c.Request.Context(), currentUser(c), name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag.Name)
}

func tagNames(tags []domain.Tag) []string {
	names := make([]string, len(tags))
	for i := range tags {
		names[i] = tags[i].Name
	}
	return names
}

func questionToResponse(q domain.Question) QuestionResponse {
	return QuestionResponse{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Author:      authorToResponse(q.Author),
		Tags:        tagNames(q.Tags),
		CreatedAt:   formatTime(q.CreatedAt),
	}
}
