package server

import (
	"devconnector/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/posts/comment/:id
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body object{text=string} true "Comment body"
// @Success 200 {array} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/comment/{id} [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	text, err := parseText(c)
	if err != nil {
		return respondError(c, err)
	}

	postID := c.Params("id")
	userID := currentUserID(c)
	post, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		UserID: userID,
		PostID: postID,
		Text:   text,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostCommentsUpdated, fiber.Map{"_id": postID, "comments": post.Comments})
	s.publishUserEvent(c, post.UserID, EventPostCommented, fiber.Map{"post_id": postID, "comment": post.Comments[0]})
	return c.JSON(post.Comments)
}

// DeleteComment handles DELETE /api/posts/comment/:id/:comment_id
// @Summary Delete a comment
// @Description Only the comment's author may delete it.
// @Tags comments
// @Produce json
// @Param id path string true "Post ID"
// @Param comment_id path string true "Comment ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/comment/{id}/{comment_id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID := c.Params("id")
	comments, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: c.Params("comment_id"),
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostCommentsUpdated, fiber.Map{"_id": postID, "comments": comments})
	return c.JSON(comments)
}
