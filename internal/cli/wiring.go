package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"empathy-assessment-service/internal/app"
	"empathy-assessment-service/internal/config"
	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/infra/memory"
	pginfra "empathy-assessment-service/internal/infra/postgres"
	redisinfra "empathy-assessment-service/internal/infra/redis"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/subject"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// runtime holds the wired service plus the resources it borrowed.
type runtime struct {
	service *app.AssessmentService
	items   app.ItemLoader
	pool    *pgxpool.Pool
	db      *bun.DB
	redis   *redis.Client
}

func (r *runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
}

// buildRuntime picks Redis and Postgres backed adapters when configured and
// in-memory ones otherwise.
func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{}

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	checkpointTTL := config.TTLDuration(cfg.Redis.CheckpointTTL, 24*time.Hour)

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.pool = pool
		rt.db = openBun(cfg)
	}

	var loader memory.ItemLoader = memory.NewStaticItemLoader(itembank.Default())
	if rt.pool != nil {
		loader = pginfra.NewItemLoader(rt.pool)
	}

	itemsTTL := config.TTLDuration(cfg.Items.TTL, 10*time.Minute)
	var sessions app.SessionRepository
	var checkpoints app.CheckpointStore
	if rt.redis != nil {
		rt.items = redisinfra.NewItemRepository(rt.redis, loader, itemsTTL)
		sessions = redisinfra.NewSessionStore(rt.redis, redisTTL)
		checkpoints = redisinfra.NewCheckpointStore(rt.redis, checkpointTTL)
	} else {
		rt.items = memory.NewItemRepository(loader, itemsTTL)
		sessions = memory.NewSessionStore()
		checkpoints = memory.NewCheckpointStore()
	}

	var reports app.ReportStore = memory.NewReportStore()
	if rt.db != nil {
		reports = pginfra.NewReportStore(rt.db)
	}

	subj, err := newSubject(cfg.Subject)
	if err != nil {
		rt.Close()
		return nil, err
	}

	seed := cfg.Assessment.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rt.service = app.NewAssessmentService(sessions, rt.items, subj, app.Config{
		Mode:           domain.Mode(cfg.Assessment.Mode),
		Input:          domain.InputKind(cfg.Assessment.Input),
		Retries:        cfg.Assessment.Retries,
		RetryBackoff:   config.TTLDuration(cfg.Assessment.RetryBackoff, 500*time.Millisecond),
		SubjectTimeout: config.TTLDuration(cfg.Assessment.SubjectTimeout, 2*time.Minute),
		Personality:    cfg.Assessment.Personality,
		Renderer:       itembank.NewRendererWithRand(itembank.DefaultVariants(), rand.New(rand.NewSource(seed))),
		Checkpoints:    checkpoints,
		Reports:        reports,
	})
	return rt, nil
}

func newSubject(cfg config.Subject) (subject.Subject, error) {
	timeout := config.TTLDuration(cfg.Timeout, 30*time.Second)
	switch cfg.Kind {
	case "exec":
		return subject.NewExec(cfg.Command, cfg.Env...)
	case "http":
		return subject.NewHTTP(cfg.URL, cfg.Headers, timeout), nil
	case "", "echo":
		reply := cfg.Reply
		if reply == "" {
			reply = "I understand how they feel because I have been in a similar situation too."
		}
		return subject.Echo{Reply: reply}, nil
	}
	return nil, fmt.Errorf("unknown subject kind %q", cfg.Kind)
}
