// Package main provides operator utilities for the posts API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"devconnector/internal/bootstrap"
	"devconnector/internal/cache"
	"devconnector/internal/config"
	"devconnector/internal/middleware"
	"devconnector/internal/notifications"
	"devconnector/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin create-user <name> <email>  - Register a user")
	fmt.Println("  go run ./cmd/admin list-users [limit]           - List users")
	fmt.Println("  go run ./cmd/admin token <user_id> [ttl]        - Issue an API token (ttl e.g. 24h)")
	fmt.Println("  go run ./cmd/admin watch                        - Print post events as they happen")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	middleware.ConfigureLogger(cfg.IsProduction(), cfg.LogLevel)

	command := os.Args[1]
	switch command {
	case "create-user":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		withRuntime(cfg, func(ctx context.Context, rt *bootstrap.Runtime) error {
			return createUser(ctx, rt, os.Args[2], os.Args[3])
		})

	case "list-users":
		limit := 50
		if len(os.Args) > 2 {
			if limit, err = strconv.Atoi(os.Args[2]); err != nil {
				log.Fatalf("invalid limit %q", os.Args[2])
			}
		}
		withRuntime(cfg, func(ctx context.Context, rt *bootstrap.Runtime) error {
			return listUsers(ctx, rt, limit)
		})

	case "token":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		ttl := 24 * time.Hour
		if len(os.Args) > 3 {
			if ttl, err = time.ParseDuration(os.Args[3]); err != nil {
				log.Fatalf("invalid ttl %q: %v", os.Args[3], err)
			}
		}
		issueToken(cfg, os.Args[2], ttl)

	case "watch":
		watch(cfg)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func withRuntime(cfg *config.Config, fn func(context.Context, *bootstrap.Runtime) error) {
	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipSchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	if err := fn(ctx, rt); err != nil {
		log.Printf("%s failed: %v", os.Args[1], err)
	}
}

func createUser(ctx context.Context, rt *bootstrap.Runtime, name, email string) error {
	user, err := service.NewUserService(rt.Users).CreateUser(ctx, service.CreateUserInput{Name: name, Email: email})
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (ID: %s, email: %s)\n", user.Name, user.ID, user.Email)
	return nil
}

func listUsers(ctx context.Context, rt *bootstrap.Runtime, limit int) error {
	users, err := service.NewUserService(rt.Users).ListUsers(ctx, limit, 0)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}
	fmt.Printf("Users (%d):\n", len(users))
	for _, u := range users {
		fmt.Printf("  %s  %-24s %s\n", u.ID, u.Name, u.Email)
	}
	return nil
}

func issueToken(cfg *config.Config, userID string, ttl time.Duration) {
	token, err := middleware.IssueToken(middleware.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, userID, ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func watch(cfg *config.Config) {
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()
	if rdb == nil {
		log.Fatal("Redis is required to watch events")
	}
	defer func() { _ = rdb.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := notifications.NewNotifier(rdb).StartPatternSubscriber(ctx, func(channel, payload string) {
		fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), channel, payload)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	fmt.Println("Watching post events, Ctrl-C to stop")
	<-ctx.Done()
}
