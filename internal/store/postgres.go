package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_samples (
	time  TIMESTAMPTZ NOT NULL,
	type  TEXT        NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (time, type)
);

CREATE TABLE IF NOT EXISTS device_settings (
	id                 SMALLINT PRIMARY KEY DEFAULT 1,
	override_time      BOOLEAN NOT NULL DEFAULT FALSE,
	water_enabled      BOOLEAN NOT NULL DEFAULT FALSE,
	hour               INT NOT NULL DEFAULT 0,
	minute             INT NOT NULL DEFAULT 0,
	second             INT NOT NULL DEFAULT 0,
	min_soil           INT NOT NULL DEFAULT 0,
	run_duration       INT NOT NULL DEFAULT 0,
	run_times          TEXT NOT NULL DEFAULT '[]',
	max_chance         DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_accumulation DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS device_log (
	id        BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	reading   TEXT NOT NULL,
	value     TEXT NOT NULL DEFAULT ''
);
`

// PostgresStore is the lib/pq-backed implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection, and bootstraps the schema.
func OpenPostgres(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) UpsertSample(ctx context.Context, s Sample) error {
	query := `
		INSERT INTO weather_samples (time, type, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (time, type) DO UPDATE
		SET value = EXCLUDED.value
	`
	_, err := p.db.ExecContext(ctx, query, s.Time, string(s.Type), s.Value)
	return err
}

func (p *PostgresStore) PruneSamplesBefore(ctx context.Context, cutoff time.Time) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM weather_samples WHERE time < $1`, cutoff)
	return err
}

func (p *PostgresStore) RecentSamples(ctx context.Context, since time.Time) ([]Sample, error) {
	query := `
		SELECT time, type, value
		FROM weather_samples
		WHERE time > $1
		ORDER BY time ASC
	`
	rows, err := p.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var typ string
		if err := rows.Scan(&s.Time, &typ, &s.Value); err != nil {
			return nil, err
		}
		s.Type = SampleType(typ)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (p *PostgresStore) MaxSampleValue(ctx context.Context, typ SampleType, from, to time.Time) (float64, bool, error) {
	return p.aggregateSampleValue(ctx, "MAX", typ, from, to)
}

func (p *PostgresStore) SumSampleValue(ctx context.Context, typ SampleType, from, to time.Time) (float64, bool, error) {
	return p.aggregateSampleValue(ctx, "SUM", typ, from, to)
}

func (p *PostgresStore) aggregateSampleValue(ctx context.Context, fn string, typ SampleType, from, to time.Time) (float64, bool, error) {
	query := fmt.Sprintf(`
		SELECT %s(value)
		FROM weather_samples
		WHERE type = $1 AND time > $2 AND time < $3
	`, fn)

	var value sql.NullFloat64
	if err := p.db.QueryRowContext(ctx, query, string(typ), from, to).Scan(&value); err != nil {
		return 0, false, err
	}
	return value.Float64, value.Valid, nil
}

func (p *PostgresStore) FirstSampleBelow(ctx context.Context, types []SampleType, since time.Time, limit float64) (*Sample, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	query := `
		SELECT time, type, value
		FROM weather_samples
		WHERE type = ANY($1) AND time > $2 AND value < $3
		ORDER BY time ASC
		LIMIT 1
	`

	var s Sample
	var typ string
	err := p.db.QueryRowContext(ctx, query, pq.Array(names), since, limit).Scan(&s.Time, &typ, &s.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Type = SampleType(typ)
	return &s, nil
}

func (p *PostgresStore) Settings(ctx context.Context) (Settings, error) {
	query := `
		SELECT override_time, water_enabled, hour, minute, second,
		       min_soil, run_duration, run_times, max_chance, total_accumulation
		FROM device_settings
		LIMIT 1
	`

	var s Settings
	var runTimes string
	err := p.db.QueryRowContext(ctx, query).Scan(
		&s.OverrideTime,
		&s.WaterEnabled,
		&s.Hour,
		&s.Minute,
		&s.Second,
		&s.MinSoil,
		&s.RunDuration,
		&runTimes,
		&s.MaxChance,
		&s.TotalAccumulation,
	)
	if err == sql.ErrNoRows {
		return Settings{}, ErrNoSettings
	}
	if err != nil {
		return Settings{}, err
	}

	if err := json.Unmarshal([]byte(runTimes), &s.RunTimes); err != nil {
		return Settings{}, fmt.Errorf("invalid run_times column: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) UpdateSettings(ctx context.Context, s Settings) error {
	runTimes, err := json.Marshal(s.RunTimes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO device_settings (
			id, override_time, water_enabled, hour, minute, second,
			min_soil, run_duration, run_times, max_chance, total_accumulation
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET override_time = EXCLUDED.override_time,
		    water_enabled = EXCLUDED.water_enabled,
		    hour = EXCLUDED.hour,
		    minute = EXCLUDED.minute,
		    second = EXCLUDED.second,
		    min_soil = EXCLUDED.min_soil,
		    run_duration = EXCLUDED.run_duration,
		    run_times = EXCLUDED.run_times,
		    max_chance = EXCLUDED.max_chance,
		    total_accumulation = EXCLUDED.total_accumulation
	`

	_, err = p.db.ExecContext(ctx, query,
		s.OverrideTime, s.WaterEnabled, s.Hour, s.Minute, s.Second,
		s.MinSoil, s.RunDuration, string(runTimes), s.MaxChance, s.TotalAccumulation,
	)
	return err
}

func (p *PostgresStore) AppendLogEntry(ctx context.Context, e LogEntry) error {
	query := `INSERT INTO device_log (timestamp, reading, value) VALUES ($1, $2, $3)`
	_, err := p.db.ExecContext(ctx, query, e.Timestamp, e.Reading, e.Value)
	return err
}

func (p *PostgresStore) RecentLogEntries(ctx context.Context, limit int) ([]LogEntry, error) {
	query := `
		SELECT timestamp, reading, value
		FROM device_log
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Timestamp, &e.Reading, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) HasLogReadingOn(ctx context.Context, day time.Time, reading string) (bool, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	query := `
		SELECT EXISTS (
			SELECT 1 FROM device_log
			WHERE timestamp >= $1 AND reading = $2
		)
	`

	var exists bool
	if err := p.db.QueryRowContext(ctx, query, dayStart, reading).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
