// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/repository"
)

// PostRepoStub is an in-memory PostRepository with the same versioning
// rules as the real stores. Stored posts are deep-copied in and out.
type PostRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.Post
	nextID int

	// BeforeSave, when set, runs before every Save and may return an error
	// to inject failures.
	BeforeSave func(post *models.Post) error
	SaveCalls  int
}

// NewPostRepoStub creates an empty in-memory post store.
func NewPostRepoStub() *PostRepoStub {
	return &PostRepoStub{items: make(map[string]*models.Post), nextID: 1}
}

func clonePost(p *models.Post) *models.Post {
	b, _ := json.Marshal(p)
	var out models.Post
	_ = json.Unmarshal(b, &out)
	out.Normalize()
	return &out
}

// GetByID returns a copy of the stored post.
func (s *PostRepoStub) GetByID(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePost(p), nil
}

// List returns copies of all posts, newest first.
func (s *PostRepoStub) List(_ context.Context) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Post, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, clonePost(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Save inserts or version-checks and replaces a post.
func (s *PostRepoStub) Save(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++
	if s.BeforeSave != nil {
		if err := s.BeforeSave(post); err != nil {
			return err
		}
	}

	post.Normalize()
	if post.ID == "" {
		post.ID = strconv.Itoa(s.nextID)
		s.nextID++
		post.Version = 0
		if post.Date.IsZero() {
			post.Date = time.Now().UTC()
		}
		s.items[post.ID] = clonePost(post)
		return nil
	}

	stored, ok := s.items[post.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != post.Version {
		return repository.ErrVersionConflict
	}
	post.Version++
	s.items[post.ID] = clonePost(post)
	return nil
}

// Delete removes a post.
func (s *PostRepoStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Put stores p as-is, bypassing versioning. Handy for fixtures.
func (s *PostRepoStub) Put(p *models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = clonePost(p)
}

// Len reports how many posts are stored.
func (s *PostRepoStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// UserRepoStub is an in-memory UserRepository.
type UserRepoStub struct {
	mu    sync.Mutex
	items map[string]models.User
}

// NewUserRepoStub creates a user store preloaded with users.
func NewUserRepoStub(users ...models.User) *UserRepoStub {
	s := &UserRepoStub{items: make(map[string]models.User)}
	for _, u := range users {
		s.items[u.ID] = u
	}
	return s
}

func (s *UserRepoStub) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *UserRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.items {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserRepoStub) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.items {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = "user-" + strconv.Itoa(len(s.items)+1)
	}
	s.items[user.ID] = *user
	return nil
}

func (s *UserRepoStub) List(_ context.Context, limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.items))
	for _, u := range s.items {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if offset >= len(users) {
		return []models.User{}, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}
