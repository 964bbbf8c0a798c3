// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is a user-authored text entry. Likes and comments are owned by the
// post and stored inside it, newest first.
type Post struct {
	ID       string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	UserID   string    `gorm:"column:user_id;not null;index" json:"user"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	Likes    []Like    `gorm:"type:text;serializer:json" json:"likes"`
	Comments []Comment `gorm:"type:text;serializer:json" json:"comments"`
	Date     time.Time `gorm:"index" json:"date"`
	// Version is bumped on every successful save and guards concurrent
	// read-modify-write cycles.
	Version int `gorm:"not null" json:"__v"`
}

// Like is a user's endorsement of a post.
type Like struct {
	UserID string `json:"user" bson:"user"`
}

// Comment is a user-authored reply attached to a post.
type Comment struct {
	ID     string    `json:"_id" bson:"_id"`
	UserID string    `json:"user" bson:"user"`
	Text   string    `json:"text" bson:"text"`
	Name   string    `json:"name" bson:"name"`
	Avatar string    `json:"avatar" bson:"avatar"`
	Date   time.Time `json:"date" bson:"date"`
}

// GetVersion returns the optimistic-lock version.
func (p *Post) GetVersion() int { return p.Version }

// LikedBy reports whether userID already appears in the post's likes.
func (p *Post) LikedBy(userID string) bool {
	return p.likeIndex(userID) >= 0
}

// AddLike prepends a like for userID. It does not check for duplicates.
func (p *Post) AddLike(userID string) {
	p.Likes = append([]Like{{UserID: userID}}, p.Likes...)
}

// RemoveLike drops userID's like and reports whether one was present.
func (p *Post) RemoveLike(userID string) bool {
	i := p.likeIndex(userID)
	if i < 0 {
		return false
	}
	p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
	return true
}

// AddComment prepends c to the post's comments.
func (p *Post) AddComment(c Comment) {
	p.Comments = append([]Comment{c}, p.Comments...)
}

// FindComment returns the comment with the given id, or nil.
func (p *Post) FindComment(commentID string) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return &p.Comments[i]
		}
	}
	return nil
}

// RemoveComment drops the comment with the given id and reports whether it
// was present.
func (p *Post) RemoveComment(commentID string) bool {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
			return true
		}
	}
	return false
}

// Normalize replaces nil likes/comments with empty slices so they encode
// as [] rather than null.
func (p *Post) Normalize() {
	if p.Likes == nil {
		p.Likes = []Like{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

func (p *Post) likeIndex(userID string) int {
	for i, l := range p.Likes {
		if l.UserID == userID {
			return i
		}
	}
	return -1
}
