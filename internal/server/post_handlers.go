package server

import (
	"devconnector/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Create a post authored by the authenticated user.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body object{text=string} true "Post body"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	text, err := parseText(c)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID: currentUserID(c),
		Text:   text,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostCreated, post)
	return c.JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description List every post, newest first.
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Security BearerAuth
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/post/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/post/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Only the author may delete a post.
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	post, err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: c.Params("id"),
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostDeleted, fiber.Map{"_id": post.ID})
	return c.JSON(fiber.Map{"msg": "Post successfully removed"})
}

// LikePost handles PUT /api/posts/like/:id
// @Summary Like a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {array} models.Like
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/like/{id} [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID := c.Params("id")
	userID := currentUserID(c)
	post, err := s.postService.LikePost(c.UserContext(), service.LikeInput{
		UserID: userID,
		PostID: postID,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostLikesUpdated, fiber.Map{"_id": postID, "likes": post.Likes})
	s.publishUserEvent(c, post.UserID, EventPostLiked, fiber.Map{"post_id": postID, "user": userID})
	return c.JSON(post.Likes)
}

// UnlikePost handles PUT /api/posts/unlike/:id
// @Summary Unlike a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {array} models.Like
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/unlike/{id} [put]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	postID := c.Params("id")
	post, err := s.postService.UnlikePost(c.UserContext(), service.LikeInput{
		UserID: currentUserID(c),
		PostID: postID,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c, EventPostLikesUpdated, fiber.Map{"_id": postID, "likes": post.Likes})
	return c.JSON(post.Likes)
}
