// Package feedback persists user interactions, explicit feedback and
// usage patterns in SQLite. The store feeds both the feedback analytics
// endpoint and the insight trainer.
package feedback

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the feedback database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to feedback database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_interactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		question TEXT NOT NULL,
		intent TEXT NOT NULL,
		analysis_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user ON user_interactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON user_interactions(created_at);

	CREATE TABLE IF NOT EXISTS user_feedback (
		id TEXT PRIMARY KEY,
		interaction_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (interaction_id) REFERENCES user_interactions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_user ON user_feedback(user_id);

	CREATE TABLE IF NOT EXISTS usage_patterns (
		user_id TEXT NOT NULL,
		analysis_type TEXT NOT NULL,
		uses INTEGER NOT NULL DEFAULT 0,
		last_used TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, analysis_type)
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT NOT NULL,
		preference TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, preference)
	);

	CREATE TABLE IF NOT EXISTS performance_metrics (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_operation ON performance_metrics(operation);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize feedback schema: %w", err)
	}
	return nil
}

// Interaction is one answered question.
type Interaction struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Question     string        `json:"question"`
	Intent       string        `json:"intent"`
	AnalysisType string        `json:"analysis_type"`
	Confidence   float64       `json:"confidence"`
	Duration     time.Duration `json:"duration_ms"`
	CreatedAt    time.Time     `json:"created_at"`
}

// LogInteraction records an interaction, assigning it an id, and bumps
// the user's usage pattern for the analysis type.
func (s *Store) LogInteraction(in Interaction) (string, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO user_interactions (id, user_id, question, intent, analysis_type, confidence, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, in.Question, in.Intent, in.AnalysisType,
		in.Confidence, in.Duration.Milliseconds(), in.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert interaction: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO usage_patterns (user_id, analysis_type, uses, last_used)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(user_id, analysis_type)
		 DO UPDATE SET uses = uses + 1, last_used = excluded.last_used`,
		in.UserID, in.AnalysisType, in.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update usage pattern: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit interaction: %w", err)
	}
	return in.ID, nil
}

// Feedback is an explicit rating of one interaction.
type Feedback struct {
	ID            string    `json:"id"`
	InteractionID string    `json:"interaction_id"`
	UserID        string    `json:"user_id"`
	Rating        int       `json:"rating"` // 1..5
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CollectFeedback stores a rating. A rating of 4 or better marks the
// interaction's analysis type as a preferred one for the user.
func (s *Store) CollectFeedback(fb Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", fb.Rating)
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var analysisType string
	err = tx.QueryRow(
		`SELECT analysis_type FROM user_interactions WHERE id = ?`, fb.InteractionID,
	).Scan(&analysisType)
	if err == sql.ErrNoRows {
		return fmt.Errorf("interaction %s not found", fb.InteractionID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up interaction: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO user_feedback (id, interaction_id, user_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.InteractionID, fb.UserID, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	if fb.Rating >= 4 {
		_, err = tx.Exec(
			`INSERT INTO user_preferences (user_id, preference, value, updated_at)
			 VALUES (?, 'preferred_analysis', ?, ?)
			 ON CONFLICT(user_id, preference)
			 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			fb.UserID, analysisType, fb.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update preference: %w", err)
		}
	}
	return tx.Commit()
}

// UsagePattern is how often a user ran one analysis type.
type UsagePattern struct {
	AnalysisType string    `json:"analysis_type"`
	Uses         int       `json:"uses"`
	LastUsed     time.Time `json:"last_used"`
}

// UserPatterns returns a user's usage patterns, most used first.
func (s *Store) UserPatterns(userID string) ([]UsagePattern, error) {
	rows, err := s.db.Query(
		`SELECT analysis_type, uses, last_used FROM usage_patterns
		 WHERE user_id = ? ORDER BY uses DESC, analysis_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage patterns: %w", err)
	}
	defer rows.Close()

	var patterns []UsagePattern
	for rows.Next() {
		var p UsagePattern
		if err := rows.Scan(&p.AnalysisType, &p.Uses, &p.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan usage pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UserPreferences returns a user's stored preferences.
func (s *Store) UserPreferences(userID string) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT preference, value FROM user_preferences WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}
	return prefs, rows.Err()
}

// Analytics summarizes recent feedback.
type Analytics struct {
	Interactions  int            `json:"interactions"`
	Ratings       int            `json:"ratings"`
	AverageRating float64        `json:"average_rating"`
	ByType        map[string]int `json:"by_type"`
}

// FeedbackAnalytics aggregates interactions and ratings over the last n
// days.
func (s *Store) FeedbackAnalytics(days int) (*Analytics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	out := &Analytics{ByType: make(map[string]int)}

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_interactions WHERE created_at >= ?`, since,
	).Scan(&out.Interactions)
	if err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM user_feedback WHERE created_at >= ?`, since,
	).Scan(&out.Ratings, &out.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT analysis_type, COUNT(*) FROM user_interactions
		 WHERE created_at >= ? GROUP BY analysis_type`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group interactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var analysisType string
		var count int
		if err := rows.Scan(&analysisType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan interaction group: %w", err)
		}
		out.ByType[analysisType] = count
	}
	return out, rows.Err()
}

// LogPerformance records how long an operation took.
func (s *Store) LogPerformance(operation string, duration time.Duration, success bool) error {
	_, err := s.db.Exec(
		`INSERT INTO performance_metrics (id, operation, duration_ms, success, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), operation, duration.Milliseconds(), boolToInt(success), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert performance metric: %w", err)
	}
	return nil
}

// CleanupOldData deletes interactions, feedback and metrics older than
// the given number of days. Usage patterns and preferences are kept.
func (s *Store) CleanupOldData(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var total int64
	for _, table := range []string{"user_feedback", "user_interactions", "performance_metrics"} {
		res, err := s.db.Exec(`DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to clean up %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RatedInteraction is one interaction with its best rating (zero when
// unrated), as consumed by the insight trainer.
type RatedInteraction struct {
	UserID       string
	AnalysisType string
	Rating       int
}

// RatedInteractions returns every interaction joined with its feedback
// rating, zero when no feedback was given.
func (s *Store) RatedInteractions() ([]RatedInteraction, error) {
	rows, err := s.db.Query(
		`SELECT i.user_id, i.analysis_type, COALESCE(MAX(f.rating), 0)
		 FROM user_interactions i
		 LEFT JOIN user_feedback f ON f.interaction_id = i.id
		 GROUP BY i.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rated interactions: %w", err)
	}
	defer rows.Close()

	var out []RatedInteraction
	for rows.Next() {
		var ri RatedInteraction
		if err := rows.Scan(&ri.UserID, &ri.AnalysisType, &ri.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan rated interaction: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}
