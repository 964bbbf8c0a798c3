// Command seed fills the configured store with demo users and posts.
package main

import (
	"context"
	"flag"
	"log"

	"devconnector/internal/bootstrap"
	"devconnector/internal/config"
	"devconnector/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	maxLikes := flag.Int("max-likes", defaults.MaxLikes, "Maximum likes per post")
	maxComments := flag.Int("max-comments", defaults.MaxComments, "Maximum comments per post")
	maxDays := flag.Int("max-days", defaults.MaxDays, "Spread post dates over this many days")
	seedValue := flag.Int64("seed", 0, "Random seed (0 = time based)")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, dry_run=%v", *numUsers, *numPosts, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(ctx); err != nil {
			log.Printf("close runtime: %v", err)
		}
	}()

	f := seed.NewFactory(rt.Posts, rt.Users, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxLikes:    *maxLikes,
		MaxComments: *maxComments,
		MaxDays:     *maxDays,
		Seed:        *seedValue,
		DryRun:      *dryRun,
	})
	res, err := f.Run(ctx)
	if err != nil {
		log.Printf("Seeding failed: %v", err)
		return
	}

	log.Printf("Done: %d users, %d posts, %d likes, %d comments",
		len(res.Users), len(res.Posts), res.Likes, res.Comments)
}
