// Package store persists jobs, relevance analyses, and proposals in a local
// sqlite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	client_country    TEXT NOT NULL DEFAULT '',
	category_label    TEXT NOT NULL DEFAULT '',
	subcategory_label TEXT NOT NULL DEFAULT '',
	posted_on         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS job_relevance (
	job_id               TEXT PRIMARY KEY REFERENCES jobs(id),
	score                REAL NOT NULL DEFAULT 0,
	category             TEXT NOT NULL DEFAULT '',
	reasoning            TEXT NOT NULL DEFAULT '',
	technology_match     TEXT NOT NULL DEFAULT '',
	portfolio_match      TEXT NOT NULL DEFAULT '',
	project_match        TEXT NOT NULL DEFAULT '',
	location_match       TEXT NOT NULL DEFAULT '',
	closest_profile_name TEXT NOT NULL DEFAULT '',
	tags                 TEXT NOT NULL DEFAULT '[]',
	updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS proposals (
	job_id        TEXT PRIMARY KEY REFERENCES jobs(id),
	proposal_text TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
`

// Job is one stored job posting.
type Job struct {
	ID               string
	Title            string
	Description      string
	ClientCountry    string
	CategoryLabel    string
	SubcategoryLabel string
	PostedOn         string
}

// Relevance is the persisted relevance analysis for a job.
type Relevance struct {
	JobID              string
	Score              float64
	Category           string
	Reasoning          string
	TechnologyMatch    string
	PortfolioMatch     string
	ProjectMatch       string
	LocationMatch      string
	ClosestProfileName string
	Tags               []string
}

// Proposal is the persisted proposal text for a job.
type Proposal struct {
	JobID     string
	Text      string
	UpdatedAt time.Time
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveJob inserts or replaces a job posting.
func (s *Store) SaveJob(ctx context.Context, job *Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job with an id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, description, client_country, category_label, subcategory_label, posted_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			client_country = excluded.client_country,
			category_label = excluded.category_label,
			subcategory_label = excluded.subcategory_label,
			posted_on = excluded.posted_on`,
		job.ID, job.Title, job.Description, job.ClientCountry, job.CategoryLabel, job.SubcategoryLabel, job.PostedOn,
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// JobByID loads a single job. Returns ErrNotFound for unknown ids.
func (s *Store) JobByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, client_country, category_label, subcategory_label, posted_on
		FROM jobs WHERE id = ?`, id)

	var job Job
	err := row.Scan(&job.ID, &job.Title, &job.Description, &job.ClientCountry,
		&job.CategoryLabel, &job.SubcategoryLabel, &job.PostedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return &job, nil
}

// Jobs lists all stored jobs ordered by id.
func (s *Store) Jobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, client_country, category_label, subcategory_label, posted_on
		FROM jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Description, &job.ClientCountry,
			&job.CategoryLabel, &job.SubcategoryLabel, &job.PostedOn); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpsertRelevance stores or replaces the relevance analysis for a job.
func (s *Store) UpsertRelevance(ctx context.Context, rel *Relevance) error {
	if rel == nil || strings.TrimSpace(rel.JobID) == "" {
		return errors.New("relevance with a job id is required")
	}

	tags := rel.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_relevance (job_id, score, category, reasoning, technology_match,
			portfolio_match, project_match, location_match, closest_profile_name, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			score = excluded.score,
			category = excluded.category,
			reasoning = excluded.reasoning,
			technology_match = excluded.technology_match,
			portfolio_match = excluded.portfolio_match,
			project_match = excluded.project_match,
			location_match = excluded.location_match,
			closest_profile_name = excluded.closest_profile_name,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		rel.JobID, rel.Score, rel.Category, rel.Reasoning, rel.TechnologyMatch,
		rel.PortfolioMatch, rel.ProjectMatch, rel.LocationMatch, rel.ClosestProfileName,
		string(encoded), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert relevance for job %s: %w", rel.JobID, err)
	}
	return nil
}

// RelevanceByJobID loads the relevance analysis for a job. Returns
// ErrNotFound when the job was never analyzed.
func (s *Store) RelevanceByJobID(ctx context.Context, jobID string) (*Relevance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, score, category, reasoning, technology_match, portfolio_match,
			project_match, location_match, closest_profile_name, tags
		FROM job_relevance WHERE job_id = ?`, jobID)

	var rel Relevance
	var tags string
	err := row.Scan(&rel.JobID, &rel.Score, &rel.Category, &rel.Reasoning, &rel.TechnologyMatch,
		&rel.PortfolioMatch, &rel.ProjectMatch, &rel.LocationMatch, &rel.ClosestProfileName, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relevance for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load relevance for job %s: %w", jobID, err)
	}

	if err := json.Unmarshal([]byte(tags), &rel.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for job %s: %w", jobID, err)
	}
	return &rel, nil
}

// SaveProposal stores or replaces the proposal text for a job.
func (s *Store) SaveProposal(ctx context.Context, jobID, text string) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("job id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (job_id, proposal_text, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			proposal_text = excluded.proposal_text,
			updated_at = excluded.updated_at`,
		jobID, text, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save proposal for job %s: %w", jobID, err)
	}
	return nil
}

// ProposalByJobID loads the stored proposal for a job. Returns ErrNotFound
// when no proposal exists yet.
func (s *Store) ProposalByJobID(ctx context.Context, jobID string) (*Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, proposal_text, updated_at FROM proposals WHERE job_id = ?`, jobID)

	var p Proposal
	var updated string
	err := row.Scan(&p.JobID, &p.Text, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposal for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal for job %s: %w", jobID, err)
	}

	if ts, err := time.Parse(time.RFC3339, updated); err == nil {
		p.UpdatedAt = ts
	}
	return &p, nil
}
