// Command migrate applies the SQL files in migrations/ in lexical order.
// A Postgres advisory lock keeps concurrent deploys from racing each
// other; every file runs in its own transaction.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("ping failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("connected to database")

	if listOnly {
		listTables(db)
		return
	}

	ctx := context.Background()

	// Redis is preferred for cross-host locking when available; the PG
	// advisory lock is the fallback.
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
	}
	lock := distlock.NewLock(redisClient, db, "newsletter:migrate", 5*time.Minute)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("acquire migration lock failed", "error", err.Error())
		os.Exit(1)
	}
	if !acquired {
		logger.Error("another migration is already running")
		os.Exit(1)
	}
	defer lock.Release(ctx)

	if err := applyMigrations(db, dir); err != nil {
		logger.Error("migrations failed", "error", err.Error())
		os.Exit(1)
	}
}

func applyMigrations(db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var okCount, errCount int
	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin for %s: %w", f, err)
		}
		if _, err := tx.Exec(content); err != nil {
			tx.Rollback()
			logger.Error("migration failed", "file", f, "error", err.Error())
			errCount++
			continue
		}
		tx.Commit()
		logger.Info("migration applied", "file", f)
		okCount++
	}

	logger.Info("migrations complete", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		return fmt.Errorf("%d migration(s) failed", errCount)
	}
	return nil
}

func listTables(db *sql.DB) {
	rows, err := db.Query(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY tablename
	`)
	if err != nil {
		logger.Error("list tables failed", "error", err.Error())
		os.Exit(1)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		rows.Scan(&t)
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
}
