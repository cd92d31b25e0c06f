package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"renovateAi/internal/config"
	"renovateAi/internal/conversation"
	"renovateAi/internal/vision"
)

// ErrNotFound indicates that a session could not be located in the backing store.
var ErrNotFound = errors.New("session not found")

// Session is the persisted envelope around one conversation.
type Session struct {
	Conversation conversation.Context `json:"conversation"`
	Photo        *vision.Photo        `json:"photo,omitempty"`
	Overrides    Overrides            `json:"overrides"`
	Concepts     []ConceptRecord      `json:"concepts,omitempty"`
}

// ID is the conversation ID.
func (s Session) ID() string {
	return s.Conversation.ID
}

// Overrides are free-text inputs the homeowner typed instead of picking from
// the catalog.
type Overrides struct {
	CustomRoomType string `json:"custom_room_type,omitempty"`
	CustomStyle    string `json:"custom_style,omitempty"`
	Constraints    string `json:"constraints,omitempty"`
	VoiceSummary   string `json:"voice_summary,omitempty"`
}

// ConceptRecord is a rendered concept as kept with the session. The image
// itself lives in media storage.
type ConceptRecord struct {
	VariationIndex  int       `json:"variation_index"`
	URL             string    `json:"url,omitempty"`
	MIMEType        string    `json:"mime_type"`
	Attempts        int       `json:"attempts"`
	Refined         bool      `json:"refined"`
	ValidationScore *float64  `json:"validation_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	out.Conversation = s.Conversation.Clone()
	if s.Photo != nil {
		p := *s.Photo
		p.Data = slices.Clone(s.Photo.Data)
		out.Photo = &p
	}
	out.Concepts = slices.Clone(s.Concepts)
	return out
}

// UpdateFunc derives the next session from the current one. Returning an
// error aborts the update and leaves the stored session unchanged.
type UpdateFunc func(Session) (Session, error)

// Store defines the persistence behaviors the application relies on.
// Update serializes writers of the same session.
type Store interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, id string, fn UpdateFunc) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	Close()
}

// NewStore selects a backing store: PostgreSQL when a database URL is
// provided, otherwise Redis when an address is provided, otherwise memory.
func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return newPostgres(ctx, cfg.DatabaseURL)
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 10 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, cfg.SessionTTL), nil
	default:
		return NewInMemoryStore(cfg.SessionTTL), nil
	}
}

func newPostgres(ctx context.Context, databaseURL string) (Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS visualization_sessions (
        id TEXT PRIMARY KEY,
        state TEXT NOT NULL,
        data JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	var schemaAlters = []string{
		`ALTER TABLE visualization_sessions ADD COLUMN IF NOT EXISTS concept_count INTEGER NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS visualization_sessions_updated_at_idx ON visualization_sessions (updated_at)`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter sessions table: %w", err)
		}
	}

	return nil
}
