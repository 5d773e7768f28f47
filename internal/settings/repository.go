package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

type Repository interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Load(ctx context.Context) (*Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM gateway_settings`)
	if err != nil {
		return nil, fmt.Errorf("loading gateway settings: %w", err)
	}
	defer rows.Close()

	// unknown keys are ignored, missing keys keep their defaults
	s := Defaults()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case keyEnabled:
			s.Enabled, _ = strconv.ParseBool(value)
		case keyTitle:
			s.Title = value
		case keyDescription:
			s.Description = value
		case keyEnvironment:
			s.Environment = value
		case keyPublicKey:
			s.PublicKey = value
		case keyPrivateKey:
			s.PrivateKey = value
		case keyDebug:
			s.Debug, _ = strconv.ParseBool(value)
		}
	}
	return s, rows.Err()
}

func (r *repository) Save(ctx context.Context, s *Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
	INSERT INTO gateway_settings (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = now();
	`

	pairs := map[string]string{
		keyEnabled:     strconv.FormatBool(s.Enabled),
		keyTitle:       s.Title,
		keyDescription: s.Description,
		keyEnvironment: s.Environment,
		keyPublicKey:   s.PublicKey,
		keyPrivateKey:  s.PrivateKey,
		keyDebug:       strconv.FormatBool(s.Debug),
	}
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx, q, key, value); err != nil {
			return fmt.Errorf("saving setting %s: %w", key, err)
		}
	}

	return tx.Commit()
}
