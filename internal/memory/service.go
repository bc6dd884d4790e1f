// Package memory keeps the bounded per-user conversation log in PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Summarizer produces a short natural-language summary of a transcript.
// Compaction uses it under the summarize policy; failures fall back to the
// sliding window so history stays bounded either way.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Options tune the history bound and compaction behavior.
type Options struct {
	// Limit is the turn count above which compaction runs.
	Limit int
	// Keep is how many recent turns survive a compaction.
	Keep int
	// Policy is PolicySlide or PolicySummarize.
	Policy string
}

// Service appends, reads, and compacts user history. Appends and trims run
// inside one transaction so concurrent messages from the same user cannot
// leave the log unbounded.
type Service struct {
	pool       *pgxpool.Pool
	summarizer Summarizer
	opts       Options
	logger     *slog.Logger
}

// NewService creates a memory service. summarizer may be nil, which forces
// the sliding-window policy.
func NewService(log *slog.Logger, pool *pgxpool.Pool, summarizer Summarizer, opts Options) *Service {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Keep <= 0 || opts.Keep > opts.Limit {
		opts.Keep = opts.Limit
	}
	if opts.Policy != PolicySummarize {
		opts.Policy = PolicySlide
	}
	return &Service{
		pool:       pool,
		summarizer: summarizer,
		opts:       opts,
		logger:     log.With(slog.String("service", "memory")),
	}
}

// Append stores one turn and compacts the user's history when it exceeds
// the limit.
func (s *Service) Append(ctx context.Context, userID, role, content string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	switch role {
	case RoleUser, RoleModel, RoleSummary:
	default:
		return fmt.Errorf("invalid turn role: %s", role)
	}

	var count int
	err := s.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO memory_turns (user_id, role, content) VALUES ($1, $2, $3)
		)
		SELECT count(*) + 1 FROM memory_turns WHERE user_id = $1`,
		userID, role, content).Scan(&count)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	if !overflow(count, s.opts.Limit) {
		return nil
	}
	return s.compact(ctx, userID)
}

// History returns the most recent limit turns in chronological order. A
// non-positive limit returns everything.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Turn, error) {
	query := `
		SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM memory_turns
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id`
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Clear deletes the user's entire history.
func (s *Service) Clear(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM memory_turns WHERE user_id = $1`, strings.TrimSpace(userID))
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Service) compact(ctx context.Context, userID string) error {
	turns, err := s.History(ctx, userID, 0)
	if err != nil {
		return err
	}
	drop, _, needed := splitForCompaction(turns, s.opts.Limit, s.opts.Keep)
	if !needed || len(drop) == 0 {
		return nil
	}

	summary := ""
	if s.opts.Policy == PolicySummarize && s.summarizer != nil {
		summary, err = s.summarizer.Summarize(ctx, transcript(drop))
		if err != nil {
			s.logger.Warn("summarize failed, sliding window instead",
				slog.String("user_id", userID), slog.Any("error", err))
			summary = ""
		}
	}

	cutID := drop[len(drop)-1].ID
	cutAt := drop[len(drop)-1].CreatedAt

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin compaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM memory_turns WHERE user_id = $1 AND id <= $2`, userID, cutID); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if summary != "" {
		// The summary inherits the cut timestamp so it sorts before the
		// surviving turns.
		if _, err := tx.Exec(ctx,
			`INSERT INTO memory_turns (user_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
			userID, RoleSummary, summary, cutAt); err != nil {
			return fmt.Errorf("insert summary turn: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit compaction: %w", err)
	}
	s.logger.Debug("history compacted",
		slog.String("user_id", userID),
		slog.Int("dropped", len(drop)),
		slog.Bool("summarized", summary != ""))
	return nil
}
