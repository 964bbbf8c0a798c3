// Package seed provides helpers to create demo data for development and
// testing. Everything goes through the repository interfaces so the same
// seeder fills any configured store.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"devconnector/internal/middleware"
	"devconnector/internal/models"
	"devconnector/internal/repository"
	"devconnector/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configure a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	MaxLikes    int
	MaxComments int
	// MaxDays spreads post dates over the last MaxDays days.
	MaxDays int
	// Seed makes runs reproducible; zero picks a time-based seed.
	Seed int64
	// DryRun builds everything but writes nothing.
	DryRun bool
}

// DefaultOptions is a small but lively dataset.
func DefaultOptions() Options {
	return Options{NumUsers: 10, NumPosts: 30, MaxLikes: 8, MaxComments: 5, MaxDays: 60}
}

// Factory builds domain entities and persists them through repositories.
type Factory struct {
	posts repository.PostRepository
	users repository.UserRepository
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
}

// NewFactory creates a Factory writing to the given repositories.
func NewFactory(posts repository.PostRepository, users repository.UserRepository, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{
		posts: posts,
		users: users,
		opts:  opts,
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now().UTC(),
	}
}

// BuildUser returns an unsaved user with the Gravatar avatar registration
// would assign.
func (f *Factory) BuildUser() *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	email := strings.ToLower(fmt.Sprintf("%s.%s%d@%s", first, last, f.faker.Number(100, 999), f.faker.DomainName()))
	return &models.User{
		Name:   first + " " + last,
		Email:  email,
		Avatar: service.GravatarURL(email),
	}
}

// BuildPost returns an unsaved post by author dated within the last MaxDays.
func (f *Factory) BuildPost(author *models.User) *models.Post {
	return &models.Post{
		UserID:   author.ID,
		Name:     author.Name,
		Avatar:   author.Avatar,
		Text:     f.faker.Paragraph(1, 3, 12, "\n"),
		Likes:    []models.Like{},
		Comments: []models.Comment{},
		Date:     f.pastDate(f.now),
	}
}

// BuildComment returns a comment by author dated after the post it belongs to.
func (f *Factory) BuildComment(author *models.User, post *models.Post) models.Comment {
	return models.Comment{
		ID:     f.faker.UUID(),
		UserID: author.ID,
		Text:   f.faker.Sentence(f.faker.Number(4, 16)),
		Name:   author.Name,
		Avatar: author.Avatar,
		Date:   post.Date.Add(time.Duration(f.rng.Intn(48*60)) * time.Minute),
	}
}

func (f *Factory) pastDate(from time.Time) time.Time {
	back := time.Duration(f.rng.Intn(f.opts.MaxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return from.Add(-back)
}

// CreateUser builds and stores a user.
func (f *Factory) CreateUser(ctx context.Context) (*models.User, error) {
	user := f.BuildUser()
	if f.opts.DryRun {
		user.ID = f.faker.UUID()
		return user, nil
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return user, nil
}

// CreatePost builds a post by author, decorates it with likes and comments
// from people and stores it.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, people []*models.User) (*models.Post, error) {
	post := f.BuildPost(author)

	for _, liker := range f.pick(people, f.opts.MaxLikes) {
		post.AddLike(liker.ID)
	}
	for i, n := 0, f.rng.Intn(f.opts.MaxComments+1); i < n && len(people) > 0; i++ {
		commenter := people[f.rng.Intn(len(people))]
		post.AddComment(f.BuildComment(commenter, post))
	}

	if f.opts.DryRun {
		post.ID = f.faker.UUID()
		return post, nil
	}
	if err := f.posts.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// pick returns up to limit distinct entries of people in random order.
func (f *Factory) pick(people []*models.User, limit int) []*models.User {
	if limit <= 0 || len(people) == 0 {
		return nil
	}
	n := f.rng.Intn(limit + 1)
	if n > len(people) {
		n = len(people)
	}
	out := make([]*models.User, 0, n)
	for _, i := range f.rng.Perm(len(people))[:n] {
		out = append(out, people[i])
	}
	return out
}

// Result summarises a seeding run.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	Likes    int
	Comments int
}

// Run creates opts.NumUsers users and opts.NumPosts posts spread over them.
func (f *Factory) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for i := 0; i < f.opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return res, err
		}
		res.Users = append(res.Users, u)
	}
	if len(res.Users) == 0 {
		return res, nil
	}

	for i := 0; i < f.opts.NumPosts; i++ {
		author := res.Users[f.rng.Intn(len(res.Users))]
		p, err := f.CreatePost(ctx, author, res.Users)
		if err != nil {
			return res, err
		}
		res.Posts = append(res.Posts, p)
		res.Likes += len(p.Likes)
		res.Comments += len(p.Comments)
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		"users", len(res.Users),
		"posts", len(res.Posts),
		"likes", res.Likes,
		"comments", res.Comments,
		"dry_run", f.opts.DryRun,
	)
	return res, nil
}
