package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// Common executor errors
var (
	// ErrNoCandidates means the story source produced zero candidates for
	// the day. Fatal for the task: an empty digest is never silently
	// published.
	ErrNoCandidates = errors.New("no candidate stories for date")

	// ErrTaskNotInitialized means a batch was requested before the task
	// fetched its story list.
	ErrTaskNotInitialized = errors.New("task has not fetched its story list")

	// ErrNoCompletedArticles means aggregation found nothing to render.
	ErrNoCompletedArticles = errors.New("no completed articles to aggregate")

	// ErrTaskIncomplete means publish was requested while articles remain
	// outside a terminal state.
	ErrTaskIncomplete = errors.New("task has articles not yet in a terminal state")

	// ErrResultMisaligned means a batched collaborator returned a slice
	// whose length differs from its input. This is a hard defect: a
	// shifted result would attach enrichment output to the wrong article.
	ErrResultMisaligned = errors.New("batched result misaligned with input")

	// ErrIllegalTransition means a status change was attempted that the
	// task state machine does not permit.
	ErrIllegalTransition = errors.New("illegal task status transition")
)

// Config holds tunables for the executor.
type Config struct {
	// StoryLimit caps how many ranked stories are enrolled per day.
	StoryLimit int

	// BatchSize is the default number of articles claimed per invocation,
	// sized to the platform's subrequest ceiling.
	BatchSize int

	// MaxRetries is the default retry ceiling for failed articles.
	MaxRetries int

	// CommentLimit caps comments fetched per story.
	CommentLimit int

	// SummaryMaxLen bounds each generated summary, in characters.
	SummaryMaxLen int

	// SubrequestSoftLimit triggers a warning when one batch issues more
	// outbound calls than this.
	SubrequestSoftLimit int

	// StaleAge is how long an article may sit in processing before the
	// recovery sweep resets it to pending.
	StaleAge time.Duration

	// RetentionDays is the default retention window for archiving.
	RetentionDays int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		StoryLimit:          30,
		BatchSize:           5,
		MaxRetries:          3,
		CommentLimit:        30,
		SummaryMaxLen:       300,
		SubrequestSoftLimit: 40,
		StaleAge:            30 * time.Minute,
		RetentionDays:       30,
	}
}

// BatchResult reports the outcome of one ProcessNextBatch invocation so
// a caller can decide whether to invoke again.
type BatchResult struct {
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
}

// Executor drives the task state machine. It never writes durable state
// directly; every mutation goes through the stores, each atomic from
// this layer's point of view.
type Executor struct {
	tasks    store.TaskStore
	articles store.ArticleStore
	batches  store.BatchAuditStore
	txRunner store.TxRunner

	source    StorySource
	filter    StoryFilter
	contents  ContentFetcher
	comments  CommentFetcher
	enricher  Enricher
	renderer  Renderer
	publisher Publisher

	logger *slog.Logger
	cfg    Config
}

// NewExecutor creates an Executor. The filter may be nil; every other
// dependency is required.
func NewExecutor(
	tasks store.TaskStore,
	articles store.ArticleStore,
	batches store.BatchAuditStore,
	txRunner store.TxRunner,
	source StorySource,
	filter StoryFilter,
	contents ContentFetcher,
	comments CommentFetcher,
	enricher Enricher,
	renderer Renderer,
	publisher Publisher,
	logger *slog.Logger,
	cfg Config,
) (*Executor, error) {
	switch {
	case tasks == nil:
		return nil, errors.New("task store cannot be nil")
	case articles == nil:
		return nil, errors.New("article store cannot be nil")
	case batches == nil:
		return nil, errors.New("batch audit store cannot be nil")
	case txRunner == nil:
		return nil, errors.New("transaction runner cannot be nil")
	case source == nil:
		return nil, errors.New("story source cannot be nil")
	case contents == nil:
		return nil, errors.New("content fetcher cannot be nil")
	case comments == nil:
		return nil, errors.New("comment fetcher cannot be nil")
	case enricher == nil:
		return nil, errors.New("enricher cannot be nil")
	case renderer == nil:
		return nil, errors.New("renderer cannot be nil")
	case publisher == nil:
		return nil, errors.New("publisher cannot be nil")
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.StoryLimit < 1 {
		cfg.StoryLimit = DefaultConfig().StoryLimit
	}

	return &Executor{
		tasks:     tasks,
		articles:  articles,
		batches:   batches,
		txRunner:  txRunner,
		source:    source,
		filter:    filter,
		contents:  contents,
		comments:  comments,
		enricher:  enricher,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// InitializeTask enrolls the day's ranked stories. Idempotent: if the
// task has already left init the existing counts are returned without
// re-fetching candidates, so a retried trigger cannot enroll duplicates.
func (e *Executor) InitializeTask(ctx context.Context, date string) (*domain.Task, error) {
	log := e.logger.With(slog.String("task_date", date))

	task, err := e.tasks.GetOrCreate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create task: %w", err)
	}

	if task.Status != domain.TaskStatusInit {
		log.Info("task already initialized",
			slog.String("status", string(task.Status)),
			slog.Int("total_articles", task.TotalArticles))
		return task, nil
	}

	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}

	stories, err := e.source.FetchRankedStories(ctx, e.cfg.StoryLimit, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ranked stories: %w", err)
	}

	if e.filter != nil {
		stories, err = e.filter.FilterStories(ctx, stories)
		if err != nil {
			return nil, fmt.Errorf("failed to filter stories: %w", err)
		}
	}

	if len(stories) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandidates, date)
	}

	articles := make([]*domain.Article, 0, len(stories))
	for i, story := range stories {
		article, err := domain.NewArticle(
			date,
			i+1,
			story.StoryID,
			story.URL,
			story.Title,
			story.Score,
			story.PublishedTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build article at rank %d: %w", i+1, err)
		}
		articles = append(articles, article)
	}

	// Enrollment is all-or-nothing: the article rows and the task's
	// total must never disagree.
	err = e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := e.articles.WithTx(tx).InsertMany(ctx, articles); err != nil {
			return err
		}
		return e.tasks.WithTx(tx).SetListFetched(ctx, date, len(articles))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enroll articles: %w", err)
	}

	log.Info("task initialized",
		slog.Int("total_articles", len(articles)))

	return e.tasks.GetByDate(ctx, date)
}

// ProcessNextBatch claims up to batchSize pending articles (ascending
// rank), enriches them, and persists every outcome. Articles are marked
// processing before any outbound call so an overlapping invocation
// cannot re-select them. A batchSize <= 0 uses the configured default.
func (e *Executor) ProcessNextBatch(ctx context.Context, date string, batchSize int) (*BatchResult, error) {
	log := e.logger.With(slog.String("task_date", date))

	if batchSize <= 0 {
		batchSize = e.cfg.BatchSize
	}

	task, err := e.tasks.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	switch task.Status {
	case domain.TaskStatusInit:
		return nil, fmt.Errorf("%w: %s", ErrTaskNotInitialized, date)
	case domain.TaskStatusPublished:
		log.Info("task already published, nothing to process")
		return &BatchResult{}, nil
	}

	claimed, err := e.claimBatch(ctx, task, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	if len(claimed) == 0 {
		return e.finishWhenDrained(ctx, task)
	}

	batchIndex, err := e.batches.NextIndex(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to compute batch index: %w", err)
	}

	log.Info("batch claimed",
		slog.Int("batch_index", batchIndex),
		slog.Int("article_count", len(claimed)),
		slog.Int("first_rank", claimed[0].Rank))

	started := time.Now()
	updates, subrequests, err := e.enrichBatch(ctx, claimed)
	if err != nil {
		// Fail closed: no article claimed by this invocation is left in
		// processing. Each one is marked failed with the batch's error.
		e.failBatch(ctx, date, batchIndex, claimed, subrequests, started, err)
		return nil, err
	}

	completed, failed := 0, 0
	for _, update := range updates {
		if update.Status == domain.ArticleStatusCompleted {
			completed++
		} else {
			failed++
		}
	}

	err = e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := e.articles.WithTx(tx).UpdateBatch(ctx, updates); err != nil {
			return err
		}
		return e.tasks.WithTx(tx).IncrementCounters(ctx, date, completed, failed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist batch results: %w", err)
	}

	status := domain.BatchStatusSuccess
	if failed > 0 {
		status = domain.BatchStatusPartial
	}
	e.recordBatch(ctx, &domain.BatchAudit{
		TaskDate:        date,
		BatchIndex:      batchIndex,
		ArticleCount:    len(claimed),
		SubrequestCount: subrequests,
		DurationMS:      time.Since(started).Milliseconds(),
		Status:          status,
	})

	if subrequests > e.cfg.SubrequestSoftLimit && e.cfg.SubrequestSoftLimit > 0 {
		log.Warn("batch exceeded subrequest soft limit",
			slog.Int("batch_index", batchIndex),
			slog.Int("subrequest_count", subrequests),
			slog.Int("soft_limit", e.cfg.SubrequestSoftLimit))
	}

	progress, err := e.tasks.GetProgress(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read task progress: %w", err)
	}

	if progress.PendingCount == 0 && progress.ProcessingCount == 0 &&
		task.Status != domain.TaskStatusAggregating {
		if err := transitionTask(ctx, e.tasks, task, domain.TaskStatusAggregating); err != nil {
			return nil, fmt.Errorf("failed to transition task to aggregating: %w", err)
		}
		log.Info("enrichment drained, task ready to aggregate",
			slog.Int("completed", progress.Task.CompletedArticles),
			slog.Int("failed", progress.Task.FailedArticles))
	}

	return &BatchResult{
		Processed:  completed,
		Failed:     failed,
		Pending:    progress.PendingCount,
		Processing: progress.ProcessingCount,
	}, nil
}

// claimBatch selects and claims pending articles in one transaction so
// a concurrent invocation cannot claim the same rows. The task's first
// batch also transitions it from list_fetched to processing.
func (e *Executor) claimBatch(ctx context.Context, task *domain.Task, batchSize int) ([]*domain.Article, error) {
	var claimed []*domain.Article

	err := e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		articles := e.articles.WithTx(tx)

		pending, err := articles.GetPending(ctx, task.Date, batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(pending))
		for i, article := range pending {
			ids[i] = article.ID
		}
		if err := articles.MarkProcessing(ctx, ids); err != nil {
			return err
		}

		claimed = pending

		if task.Status == domain.TaskStatusListFetched {
			return transitionTask(ctx, e.tasks.WithTx(tx), task, domain.TaskStatusProcessing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// finishWhenDrained handles the no-pending-work path: once nothing is
// pending or processing the task transitions to aggregating, signalling
// "enrichment done" to the poller through the zero-count result.
func (e *Executor) finishWhenDrained(ctx context.Context, task *domain.Task) (*BatchResult, error) {
	progress, err := e.tasks.GetProgress(ctx, task.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to read task progress: %w", err)
	}

	if progress.ProcessingCount == 0 && task.Status != domain.TaskStatusAggregating {
		if err := transitionTask(ctx, e.tasks, task, domain.TaskStatusAggregating); err != nil {
			return nil, fmt.Errorf("failed to transition task to aggregating: %w", err)
		}
	}

	return &BatchResult{
		Pending:    progress.PendingCount,
		Processing: progress.ProcessingCount,
	}, nil
}

// enrichBatch fans out to the collaborators for the whole batch and
// derives each article's outcome. It returns the number of outbound
// calls issued alongside the updates. Any error is a batch-level defect;
// per-article enrichment failures are encoded in the updates instead.
func (e *Executor) enrichBatch(ctx context.Context, claimed []*domain.Article) ([]store.ArticleUpdate, int, error) {
	n := len(claimed)
	subrequests := 0

	urls := make([]string, n)
	storyIDs := make([]string, n)
	titles := make([]string, n)
	for i, article := range claimed {
		urls[i] = article.URL
		storyIDs[i] = article.StoryID
		titles[i] = article.TitleEN
	}

	// One outbound call per article for content and for comments.
	subrequests += n
	contents, err := e.contents.FetchArticlesBatch(ctx, urls)
	if err != nil {
		return nil, subrequests, fmt.Errorf("failed to fetch article contents: %w", err)
	}
	if err := ensureAligned("article contents", len(contents), n); err != nil {
		return nil, subrequests, err
	}

	subrequests += n
	commentBatches, err := e.comments.FetchCommentsBatch(ctx, storyIDs, e.cfg.CommentLimit)
	if err != nil {
		return nil, subrequests, fmt.Errorf("failed to fetch comments: %w", err)
	}
	if err := ensureAligned("comments", len(commentBatches), n); err != nil {
		return nil, subrequests, err
	}

	subrequests++
	titlesZH, err := e.enricher.TranslateTitlesBatch(ctx, titles)
	if err != nil {
		return nil, subrequests, fmt.Errorf("failed to translate titles: %w", err)
	}
	if err := ensureAligned("title translations", len(titlesZH), n); err != nil {
		return nil, subrequests, err
	}

	texts := make([]string, n)
	for i := range claimed {
		texts[i] = summaryInput(contents[i], titles[i])
	}

	subrequests++
	contentSummaries, err := e.enricher.SummarizeContentBatch(ctx, texts, e.cfg.SummaryMaxLen)
	if err != nil {
		return nil, subrequests, fmt.Errorf("failed to summarize contents: %w", err)
	}
	if err := ensureAligned("content summaries", len(contentSummaries), n); err != nil {
		return nil, subrequests, err
	}

	subrequests++
	commentSummaries, err := e.enricher.SummarizeCommentsBatch(ctx, commentBatches, e.cfg.SummaryMaxLen)
	if err != nil {
		return nil, subrequests, fmt.Errorf("failed to summarize comments: %w", err)
	}
	if err := ensureAligned("comment summaries", len(commentSummaries), n); err != nil {
		return nil, subrequests, err
	}

	updates := make([]store.ArticleUpdate, 0, n)
	for i, article := range claimed {
		update := store.ArticleUpdate{
			ID:               article.ID,
			TitleZH:          titlesZH[i],
			ContentSummaryZH: contentSummaries[i],
			CommentSummaryZH: commentSummaries[i],
		}

		// The empty string is the explicit "no result produced" sentinel,
		// tested by equality: an article succeeds only with a produced
		// translation and a produced content summary.
		switch {
		case titlesZH[i] == "":
			update.Status = domain.ArticleStatusFailed
			update.ErrorMessage = "title translation produced no result"
		case contentSummaries[i] == "":
			update.Status = domain.ArticleStatusFailed
			update.ErrorMessage = "content summary produced no result"
		default:
			update.Status = domain.ArticleStatusCompleted
		}

		updates = append(updates, update)
	}

	return updates, subrequests, nil
}

// failBatch marks every claimed article failed with the batch's error
// and records a failed audit row. Persistence problems here are logged
// but not propagated; the original batch error is what the caller sees.
func (e *Executor) failBatch(
	ctx context.Context,
	date string,
	batchIndex int,
	claimed []*domain.Article,
	subrequests int,
	started time.Time,
	cause error,
) {
	log := e.logger.With(
		slog.String("task_date", date),
		slog.Int("batch_index", batchIndex))

	log.Error("batch failed, marking all claimed articles failed",
		slog.Int("article_count", len(claimed)),
		slog.String("error", cause.Error()))

	updates := make([]store.ArticleUpdate, 0, len(claimed))
	for _, article := range claimed {
		updates = append(updates, store.ArticleUpdate{
			ID:           article.ID,
			Status:       domain.ArticleStatusFailed,
			ErrorMessage: cause.Error(),
		})
	}

	err := e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := e.articles.WithTx(tx).UpdateBatch(ctx, updates); err != nil {
			return err
		}
		return e.tasks.WithTx(tx).IncrementCounters(ctx, date, 0, len(claimed))
	})
	if err != nil {
		log.Error("failed to persist batch failure", slog.String("error", err.Error()))
	}

	e.recordBatch(ctx, &domain.BatchAudit{
		TaskDate:        date,
		BatchIndex:      batchIndex,
		ArticleCount:    len(claimed),
		SubrequestCount: subrequests,
		DurationMS:      time.Since(started).Milliseconds(),
		Status:          domain.BatchStatusFailed,
		ErrorMessage:    cause.Error(),
	})
}

// recordBatch appends one audit row. The batch index was computed
// before enrichment, so a concurrent batch for the same date may have
// taken it in the meantime; a duplicate re-reads the next free index
// and retries rather than dropping the row. The audit trail is
// diagnostics only, so a final failure is logged rather than
// propagated.
func (e *Executor) recordBatch(ctx context.Context, audit *domain.BatchAudit) {
	const attempts = 3

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = e.batches.Insert(ctx, audit); err == nil {
			return
		}
		if !store.IsDuplicate(err) {
			break
		}

		next, indexErr := e.batches.NextIndex(ctx, audit.TaskDate)
		if indexErr != nil {
			err = indexErr
			break
		}
		audit.BatchIndex = next
	}

	e.logger.Error("failed to record batch audit",
		slog.String("task_date", audit.TaskDate),
		slog.Int("batch_index", audit.BatchIndex),
		slog.String("error", err.Error()))
}

// AggregateResults reads the completed articles ordered by rank, maps
// them to publish-ready records, and renders the document.
func (e *Executor) AggregateResults(ctx context.Context, date string) (string, error) {
	completed, err := e.articles.GetCompleted(ctx, date)
	if err != nil {
		return "", fmt.Errorf("failed to read completed articles: %w", err)
	}

	if len(completed) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoCompletedArticles, date)
	}

	digests := make([]*Digest, 0, len(completed))
	for _, article := range completed {
		digests = append(digests, &Digest{
			Rank:             article.Rank,
			StoryID:          article.StoryID,
			URL:              article.URL,
			TitleEN:          article.TitleEN,
			TitleZH:          article.TitleZH,
			Score:            article.Score,
			ContentSummaryZH: article.ContentSummaryZH,
			CommentSummaryZH: article.CommentSummaryZH,
		})
	}

	document, err := e.renderer.Render(digests, date)
	if err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}

	e.logger.Info("digest aggregated",
		slog.String("task_date", date),
		slog.Int("article_count", len(digests)))

	return document, nil
}

// PublishResults delivers the document. It refuses to publish a
// half-finished day: every enrolled article must be in a terminal state.
// The task is marked published only after at least one sink succeeded;
// on total failure the task stays in aggregating so a later call can
// retry.
func (e *Executor) PublishResults(ctx context.Context, date string, document string) error {
	log := e.logger.With(slog.String("task_date", date))

	task, err := e.tasks.GetByDate(ctx, date)
	if err != nil {
		return err
	}

	// A published day may be republished; the sinks overwrite
	// idempotently. Any other status besides aggregating means
	// enrichment has not drained yet.
	if task.Status != domain.TaskStatusPublished && !task.CanTransitionTo(domain.TaskStatusPublished) {
		return fmt.Errorf("%w: task is %s", ErrTaskIncomplete, task.Status)
	}

	if !task.ReadyToPublish() {
		return fmt.Errorf("%w: completed %d + failed %d != total %d",
			ErrTaskIncomplete,
			task.CompletedArticles,
			task.FailedArticles,
			task.TotalArticles)
	}

	if err := e.publisher.Publish(ctx, date, document); err != nil {
		log.Error("publish failed on every sink, task left unpublished",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to publish digest: %w", err)
	}

	if err := e.tasks.MarkPublished(ctx, date, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark task published: %w", err)
	}

	log.Info("digest published")
	return nil
}

// RetryFailedArticles bulk-resets eligible failed articles to pending
// and gives back their share of the failed counter, reopening the
// processing phase when the task had already drained. Articles at the
// retry ceiling remain permanently failed. A maxRetries <= 0 uses the
// configured default.
func (e *Executor) RetryFailedArticles(ctx context.Context, date string, maxRetries int) (int64, error) {
	log := e.logger.With(slog.String("task_date", date))

	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}

	task, err := e.tasks.GetByDate(ctx, date)
	if err != nil {
		return 0, err
	}

	var reset int64
	err = e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		reset, err = e.articles.WithTx(tx).ResetFailed(ctx, date, maxRetries)
		if err != nil {
			return err
		}
		if reset == 0 {
			return nil
		}

		tasks := e.tasks.WithTx(tx)
		if err := tasks.IncrementCounters(ctx, date, 0, -int(reset)); err != nil {
			return err
		}
		if task.Status == domain.TaskStatusAggregating {
			return transitionTask(ctx, tasks, task, domain.TaskStatusProcessing)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed articles: %w", err)
	}

	log.Info("failed articles retried",
		slog.Int64("reset", reset),
		slog.Int("max_retries", maxRetries))
	return reset, nil
}

// RecoverStaleArticles resets articles stuck in processing past the
// configured stale age back to pending. A crashed or timed-out
// invocation leaves its claims in processing; this sweep is how they
// re-enter the work queue.
func (e *Executor) RecoverStaleArticles(ctx context.Context, date string) (int64, error) {
	reset, err := e.articles.ResetStaleProcessing(ctx, date, e.cfg.StaleAge)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale articles: %w", err)
	}
	return reset, nil
}

// ArchiveOldTasks deletes tasks strictly older than the retention
// cutoff, children before parent, in one transaction. A retentionDays
// <= 0 uses the configured default.
func (e *Executor) ArchiveOldTasks(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = e.cfg.RetentionDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(domain.DateLayout)

	var deleted int64
	err := e.txRunner.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		deleted, err = e.tasks.WithTx(tx).ArchiveOlderThan(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to archive old tasks: %w", err)
	}

	e.logger.Info("old tasks archived",
		slog.String("cutoff_date", cutoff),
		slog.Int64("deleted", deleted))
	return deleted, nil
}

// Progress returns the task row plus live pending/processing counts.
func (e *Executor) Progress(ctx context.Context, date string) (*store.TaskProgress, error) {
	return e.tasks.GetProgress(ctx, date)
}

// transitionTask guards every status write with the state machine: an
// illegal move surfaces as an error instead of being silently
// persisted. On success the in-memory task tracks the new status.
func transitionTask(ctx context.Context, tasks store.TaskStore, task *domain.Task, next domain.TaskStatus) error {
	if !task.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, task.Status, next)
	}
	if err := tasks.UpdateStatus(ctx, task.Date, next); err != nil {
		return err
	}
	task.Status = next
	return nil
}

// ensureAligned verifies a batched collaborator's result length against
// the batch's input length. A mismatch is raised immediately with both
// lengths named rather than silently shifting a result to the wrong
// article.
func ensureAligned(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s returned %d results for %d inputs", ErrResultMisaligned, name, got, want)
	}
	return nil
}

// summaryInput picks the text the content summarizer sees: extracted
// content when available, then the source description, then the title.
func summaryInput(content FetchedContent, title string) string {
	if content.FullContent != "" {
		return content.FullContent
	}
	if content.Description != "" {
		return content.Description
	}
	return title
}

// dayBounds computes the UTC day window [start, end) for a task date.
func dayBounds(date string) (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidTaskDate
	}
	return start, start.Add(24 * time.Hour), nil
}
