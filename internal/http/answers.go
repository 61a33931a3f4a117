package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackit/internal/domain"
)

type createAnswerRequest struct {
	Description string `json:"description" binding:"required"`
	QuestionID  int64  `json:"question_id" binding:"required"`
}

type voteRequest struct {
	VoteType string `json:"vote_type"`
}

type AnswerResponse struct {
	ID          int64         `json:"id"`
	QuestionID  int64         `json:"question_id"`
	Description string        `json:"description"`
	Author      *UserResponse `json:"author,omitempty"`
	Accepted    bool          `json:"is_accepted"`
	CreatedAt   string        `json:"created_at"`
}

type VoteResponse struct {
	Message  string `json:"message"`
	AnswerID int64  `json:"answer_id"`
	VoteType string `json:"vote_type"`
	Created  bool   `json:"created"`
}

type TallyResponse struct {
	AnswerID int64  `json:"answer_id"`
	Up       int    `json:"up"`
	Down     int    `json:"down"`
	Score    int    `json:"score"`
	MyVote   string `json:"my_vote,omitempty"`
}

func (h *Handler) createAnswer(c *gin.Context) {
	var req createAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, _, err := h.svc.Answers.CreateAnswer(c.Request.Context(), currentUser(c), req.QuestionID, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answerToResponse(*answer))
}

// castVote takes the direction from the vote_type query parameter or a JSON body.
func (h *Handler) castVote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	voteType := c.Query("vote_type")
	if voteType == "" {
		var req voteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vote_type is required"})
			return
		}
		voteType = req.VoteType
	}

	result, err := h.svc.Votes.CastVote(c.Request.Context(), currentUser(c), id, voteType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{
		Message:  "Vote recorded",
		AnswerID: result.Vote.AnswerID,
		VoteType: string(result.Vote.Direction),
		Created:  result.Created,
	})
}

func (h *Handler) voteTally(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tally, err := h.svc.Votes.Tally(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TallyResponse{
		AnswerID: tally.AnswerID,
		Up:       tally.Up,
		Down:     tally.Down,
		Score:    tally.Score(),
		MyVote:   string(tally.Mine),
	})
}

func (h *Handler) acceptAnswer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if _, err := h.svc.Answers.AcceptAnswer(c.Request.Context(), currentUser(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func answerToResponse(a domain.Answer) AnswerResponse {
	return AnswerResponse{
		ID:          a.ID,
		QuestionID:  a.QuestionID,
		Description: a.Description,
		Author:      authorToResponse(a.Author),
		Accepted:    a.Accepted,
		CreatedAt:   formatTime(a.CreatedAt),
	}
}
