// Package persona stores per-context companion settings in PostgreSQL.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const personaColumns = `context_id, name, age, gender, mood, behavior, personality,
	custom_instructions, image_generation, web_search, allowed_channels, created_at, updated_at`

// Service reads and mutates personas. Reads fall back to the built-in
// default when no row exists; partial updates and channel/feature mutations
// are single atomic statements so concurrent commands never lose writes.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a persona service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "persona")),
	}
}

// Get returns the persona for contextID, or the default when none is stored.
func (s *Service) Get(ctx context.Context, contextID string) (Persona, error) {
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return Persona{}, fmt.Errorf("context id is required")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE context_id = $1`, contextID)
	p, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Default(contextID), nil
		}
		return Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

// Update applies the non-nil fields of req and returns the stored persona,
// creating the row from defaults first if needed.
func (s *Service) Update(ctx context.Context, contextID string, req UpdateRequest) (Persona, error) {
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return Persona{}, fmt.Errorf("context id is required")
	}
	if err := s.ensure(ctx, contextID); err != nil {
		return Persona{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE personas SET
			name = COALESCE($2, name),
			age = COALESCE($3, age),
			gender = COALESCE($4, gender),
			mood = COALESCE($5, mood),
			behavior = COALESCE($6, behavior),
			personality = COALESCE($7, personality),
			custom_instructions = COALESCE($8, custom_instructions),
			image_generation = COALESCE($9, image_generation),
			web_search = COALESCE($10, web_search),
			updated_at = now()
		WHERE context_id = $1
		RETURNING `+personaColumns,
		contextID, req.Name, req.Age, req.Gender, req.Mood, req.Behavior,
		req.Personality, req.CustomInstructions, req.ImageGeneration, req.WebSearch)
	p, err := scanPersona(row)
	if err != nil {
		return Persona{}, fmt.Errorf("update persona: %w", err)
	}
	return p, nil
}

// AddChannel adds channelID to the allow list if not present.
func (s *Service) AddChannel(ctx context.Context, contextID, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if err := s.ensure(ctx, contextID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE personas
		SET allowed_channels = array_append(allowed_channels, $2), updated_at = now()
		WHERE context_id = $1 AND NOT ($2 = ANY(allowed_channels))`,
		contextID, channelID)
	if err != nil {
		return fmt.Errorf("add allowed channel: %w", err)
	}
	return nil
}

// RemoveChannel removes channelID from the allow list.
func (s *Service) RemoveChannel(ctx context.Context, contextID, channelID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE personas
		SET allowed_channels = array_remove(allowed_channels, $2), updated_at = now()
		WHERE context_id = $1`,
		strings.TrimSpace(contextID), strings.TrimSpace(channelID))
	if err != nil {
		return fmt.Errorf("remove allowed channel: %w", err)
	}
	return nil
}

// ToggleImageGeneration flips the image generation flag and returns the new
// value.
func (s *Service) ToggleImageGeneration(ctx context.Context, contextID string) (bool, error) {
	return s.toggle(ctx, contextID, "image_generation")
}

// ToggleWebSearch flips the web search flag and returns the new value.
func (s *Service) ToggleWebSearch(ctx context.Context, contextID string) (bool, error) {
	return s.toggle(ctx, contextID, "web_search")
}

// Reset deletes the stored persona so the context falls back to defaults.
func (s *Service) Reset(ctx context.Context, contextID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM personas WHERE context_id = $1`, strings.TrimSpace(contextID))
	if err != nil {
		return fmt.Errorf("reset persona: %w", err)
	}
	return nil
}

func (s *Service) toggle(ctx context.Context, contextID, column string) (bool, error) {
	if err := s.ensure(ctx, contextID); err != nil {
		return false, err
	}
	var value bool
	err := s.pool.QueryRow(ctx,
		`UPDATE personas SET `+column+` = NOT `+column+`, updated_at = now()
		 WHERE context_id = $1 RETURNING `+column,
		strings.TrimSpace(contextID)).Scan(&value)
	if err != nil {
		return false, fmt.Errorf("toggle %s: %w", column, err)
	}
	return value, nil
}

// ensure lazily creates the default row for contextID.
func (s *Service) ensure(ctx context.Context, contextID string) error {
	d := Default(contextID)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO personas (context_id, name, age, gender, mood, behavior, personality)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (context_id) DO NOTHING`,
		contextID, d.Name, d.Age, d.Gender, d.Mood, d.Behavior, d.Personality)
	if err != nil {
		return fmt.Errorf("ensure persona: %w", err)
	}
	return nil
}

func scanPersona(row pgx.Row) (Persona, error) {
	var p Persona
	err := row.Scan(
		&p.ContextID, &p.Name, &p.Age, &p.Gender, &p.Mood, &p.Behavior,
		&p.Personality, &p.CustomInstructions, &p.ImageGeneration, &p.WebSearch,
		&p.AllowedChannels, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
