package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

// Pagination limits for List.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// UpsertResult counts what a batch did.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// ListQuery selects one page of deals, newest first.
type ListQuery struct {
	Source  domain.Source // empty = all sources
	Page    int
	PerPage int
}

// Normalize clamps Page to >= 1 and PerPage to [1, MaxPerPage].
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// SourceCount is the number of stored deals of one source.
type SourceCount struct {
	Source domain.Source `db:"source"`
	Count  int           `db:"count"`
}

type dealRow struct {
	ID        int64  `db:"id"`
	Link      string `db:"link"`
	Source    string `db:"source"`
	Title     string `db:"title"`
	Price     string `db:"price"`
	Shipping  string `db:"shipping"`
	Author    string `db:"author"`
	Thumbnail string `db:"thumbnail"`
	CreatedAt string `db:"created_at"`
}

const dealColumns = `id, link, source, title, price, shipping, author, thumbnail, created_at`

func (r dealRow) toDomain(loc *time.Location) domain.StoredDeal {
	created, _ := time.ParseInLocation(domain.TimestampLayout, r.CreatedAt, loc)
	return domain.StoredDeal{
		ID:        r.ID,
		CreatedAt: created,
		DealRecord: domain.DealRecord{
			Link:      r.Link,
			Source:    domain.Source(r.Source),
			Title:     r.Title,
			Price:     r.Price,
			Shipping:  r.Shipping,
			Author:    r.Author,
			Thumbnail: r.Thumbnail,
		},
	}
}

// Upsert writes a batch in one transaction. Every record runs inside its own
// savepoint: a failing record is rolled back alone and counted in Failed.
// Existing links get title, price, shipping and thumbnail refreshed while
// created_at is kept. The newly inserted rows are returned for indexing.
//
// A commit failure discards the whole batch and is returned as an error.
func (s *Store) Upsert(ctx context.Context, records []domain.DealRecord) (UpsertResult, []domain.StoredDeal, error) {
	var res UpsertResult
	if len(records) == 0 {
		return res, nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpsertResult{}, nil, fmt.Errorf("begin upsert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := s.now().In(s.loc)
	createdAt := now.Format(domain.TimestampLayout)
	// round-trip through the stored layout so callers see what the row holds
	firstSeen, _ := time.ParseInLocation(domain.TimestampLayout, createdAt, s.loc)

	inserted := make([]domain.StoredDeal, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			res.Failed++
			s.log.Warn("skipping invalid record",
				logger.String("link", rec.Link),
				logger.Error(err))
			continue
		}

		if _, err := tx.ExecContext(ctx, `SAVEPOINT rec`); err != nil {
			return UpsertResult{}, nil, fmt.Errorf("savepoint: %w", err)
		}

		id, isNew, err := upsertOne(ctx, tx, rec, createdAt)
		if err != nil {
			res.Failed++
			s.log.Warn("record upsert failed, rolled back",
				logger.String("link", rec.Link),
				logger.Error(err))
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO rec`); rbErr != nil {
				return UpsertResult{}, nil, fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
		}
		if _, err := tx.ExecContext(ctx, `RELEASE rec`); err != nil {
			return UpsertResult{}, nil, fmt.Errorf("release savepoint: %w", err)
		}
		if err != nil {
			continue
		}

		if isNew {
			res.Inserted++
			inserted = append(inserted, domain.StoredDeal{DealRecord: rec, ID: id, CreatedAt: firstSeen})
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("upsert batch rolled back",
			logger.Int("records", len(records)),
			logger.Error(err))
		return UpsertResult{}, nil, fmt.Errorf("commit upsert: %w", err)
	}
	committed = true

	return res, inserted, nil
}

func upsertOne(ctx context.Context, tx *sqlx.Tx, rec domain.DealRecord, createdAt string) (id int64, isNew bool, err error) {
	err = tx.GetContext(ctx, &id, `SELECT id FROM hotdeals WHERE link = ?`, rec.Link)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r, err := tx.ExecContext(ctx, `
			INSERT INTO hotdeals (link, source, title, price, shipping, author, thumbnail, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Link, string(rec.Source), rec.Title, rec.Price, rec.Shipping, rec.Author, rec.Thumbnail, createdAt,
		)
		if err != nil {
			return 0, false, fmt.Errorf("insert: %w", err)
		}
		id, err = r.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id: %w", err)
		}
		return id, true, nil

	case err != nil:
		return 0, false, fmt.Errorf("lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE hotdeals SET title = ?, price = ?, shipping = ?, thumbnail = ?
		WHERE id = ?`,
		rec.Title, rec.Price, rec.Shipping, rec.Thumbnail, id,
	); err != nil {
		return 0, false, fmt.Errorf("update: %w", err)
	}
	return id, false, nil
}

// List returns one page of deals, newest first, and the total matching count.
func (s *Store) List(ctx context.Context, q ListQuery) ([]domain.StoredDeal, int, error) {
	q = q.Normalize()

	where, args := "", []any{}
	if q.Source != "" {
		where, args = "WHERE source = ?", append(args, string(q.Source))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM hotdeals `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}
	if total == 0 {
		return []domain.StoredDeal{}, 0, nil
	}

	var rows []dealRow
	query := `SELECT ` + dealColumns + ` FROM hotdeals ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, q.PerPage, (q.Page-1)*q.PerPage)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list deals: %w", err)
	}

	return s.toDomain(rows), total, nil
}

// Stats returns per-source counts.
func (s *Store) Stats(ctx context.Context) ([]SourceCount, error) {
	var out []SourceCount
	if err := s.db.SelectContext(ctx, &out, `
		SELECT source, COUNT(*) AS count FROM hotdeals
		GROUP BY source ORDER BY count DESC, source`); err != nil {
		return nil, fmt.Errorf("deal stats: %w", err)
	}
	return out, nil
}

// Count returns the number of stored deals.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM hotdeals`); err != nil {
		return 0, fmt.Errorf("count deals: %w", err)
	}
	return n, nil
}

// SearchTitle returns up to limit deals whose title contains every token,
// newest first. No tokens means no results.
func (s *Store) SearchTitle(ctx context.Context, tokens []string, limit int) ([]domain.StoredDeal, error) {
	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)+1)
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		conds = append(conds, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	if len(conds) == 0 || limit <= 0 {
		return []domain.StoredDeal{}, nil
	}
	args = append(args, limit)

	var rows []dealRow
	query := `SELECT ` + dealColumns + ` FROM hotdeals
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	return s.toDomain(rows), nil
}

func (s *Store) toDomain(rows []dealRow) []domain.StoredDeal {
	out := make([]domain.StoredDeal, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain(s.loc)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
