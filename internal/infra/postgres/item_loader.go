package postgres

import (
	"context"
	"fmt"

	"empathy-assessment-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ItemLoader loads the assessment catalogue from the assessment_items table.
type ItemLoader struct {
	pool *pgxpool.Pool
}

func NewItemLoader(pool *pgxpool.Pool) *ItemLoader {
	return &ItemLoader{pool: pool}
}

func (l *ItemLoader) LoadItems(ctx context.Context) ([]domain.AssessmentItem, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, subscale, reverse_scored, prompt_text, guidance_text FROM assessment_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []domain.AssessmentItem
	for rows.Next() {
		var (
			item     domain.AssessmentItem
			subscale string
		)
		if err := rows.Scan(&item.ID, &subscale, &item.ReverseScored, &item.PromptText, &item.GuidanceText); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Subscale = domain.Subscale(subscale)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyItemBank
	}
	return items, nil
}

// SeedItems upserts items in one transaction.
func (l *ItemLoader) SeedItems(ctx context.Context, items []domain.AssessmentItem) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		_, err := tx.Exec(ctx, `INSERT INTO assessment_items (id, subscale, reverse_scored, prompt_text, guidance_text)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET subscale = EXCLUDED.subscale, reverse_scored = EXCLUDED.reverse_scored,
	prompt_text = EXCLUDED.prompt_text, guidance_text = EXCLUDED.guidance_text`,
			item.ID, string(item.Subscale), item.ReverseScored, item.PromptText, item.GuidanceText)
		if err != nil {
			return fmt.Errorf("seed item %d: %w", item.ID, err)
		}
	}
	return tx.Commit(ctx)
}
