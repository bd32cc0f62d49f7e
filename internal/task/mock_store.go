package task

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// MockTaskStore is an in-memory implementation of store.TaskStore for
// testing. Each operation has an overridable Fn field; when nil the
// default in-memory behavior runs.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task

	// articles, when set, backs GetProgress with live article counts.
	articles *MockArticleStore

	GetOrCreateFn       func(ctx context.Context, date string) (*domain.Task, error)
	GetByDateFn         func(ctx context.Context, date string) (*domain.Task, error)
	UpdateStatusFn      func(ctx context.Context, date string, status domain.TaskStatus) error
	SetListFetchedFn    func(ctx context.Context, date string, totalArticles int) error
	IncrementCountersFn func(ctx context.Context, date string, completedDelta, failedDelta int) error
	MarkPublishedFn     func(ctx context.Context, date string, publishedAt time.Time) error
	GetProgressFn       func(ctx context.Context, date string) (*store.TaskProgress, error)
	ArchiveOlderThanFn  func(ctx context.Context, cutoffDate string) (int64, error)
}

// NewMockTaskStore creates a MockTaskStore. The article store may be nil
// when GetProgress is not exercised or is overridden.
func NewMockTaskStore(articles *MockArticleStore) *MockTaskStore {
	return &MockTaskStore{
		tasks:    make(map[string]*domain.Task),
		articles: articles,
	}
}

// GetOrCreate implements store.TaskStore.GetOrCreate.
func (m *MockTaskStore) GetOrCreate(ctx context.Context, date string) (*domain.Task, error) {
	if m.GetOrCreateFn != nil {
		return m.GetOrCreateFn(ctx, date)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[date]; ok {
		return copyTask(task), nil
	}

	task, err := domain.NewTask(date)
	if err != nil {
		return nil, err
	}
	m.tasks[date] = task
	return copyTask(task), nil
}

// GetByDate implements store.TaskStore.GetByDate.
func (m *MockTaskStore) GetByDate(ctx context.Context, date string) (*domain.Task, error) {
	if m.GetByDateFn != nil {
		return m.GetByDateFn(ctx, date)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[date]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
func (m *MockTaskStore) UpdateStatus(ctx context.Context, date string, status domain.TaskStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, date, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[date]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// SetListFetched implements store.TaskStore.SetListFetched.
func (m *MockTaskStore) SetListFetched(ctx context.Context, date string, totalArticles int) error {
	if m.SetListFetchedFn != nil {
		return m.SetListFetchedFn(ctx, date, totalArticles)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[date]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.TotalArticles = totalArticles
	task.Status = domain.TaskStatusListFetched
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementCounters implements store.TaskStore.IncrementCounters.
func (m *MockTaskStore) IncrementCounters(ctx context.Context, date string, completedDelta, failedDelta int) error {
	if m.IncrementCountersFn != nil {
		return m.IncrementCountersFn(ctx, date, completedDelta, failedDelta)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[date]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.CompletedArticles += completedDelta
	task.FailedArticles += failedDelta
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPublished implements store.TaskStore.MarkPublished.
func (m *MockTaskStore) MarkPublished(ctx context.Context, date string, publishedAt time.Time) error {
	if m.MarkPublishedFn != nil {
		return m.MarkPublishedFn(ctx, date, publishedAt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[date]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = domain.TaskStatusPublished
	task.PublishedAt = &publishedAt
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// GetProgress implements store.TaskStore.GetProgress.
func (m *MockTaskStore) GetProgress(ctx context.Context, date string) (*store.TaskProgress, error) {
	if m.GetProgressFn != nil {
		return m.GetProgressFn(ctx, date)
	}

	m.mu.Lock()
	task, ok := m.tasks[date]
	if !ok {
		m.mu.Unlock()
		return nil, store.ErrTaskNotFound
	}
	progress := &store.TaskProgress{Task: copyTask(task)}
	m.mu.Unlock()

	if m.articles != nil {
		progress.PendingCount = m.articles.countByStatus(date, domain.ArticleStatusPending)
		progress.ProcessingCount = m.articles.countByStatus(date, domain.ArticleStatusProcessing)
	}
	return progress, nil
}

// ArchiveOlderThan implements store.TaskStore.ArchiveOlderThan.
func (m *MockTaskStore) ArchiveOlderThan(ctx context.Context, cutoffDate string) (int64, error) {
	if m.ArchiveOlderThanFn != nil {
		return m.ArchiveOlderThanFn(ctx, cutoffDate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for date := range m.tasks {
		if date < cutoffDate {
			delete(m.tasks, date)
			deleted++
		}
	}
	return deleted, nil
}

// WithTx implements store.TaskStore.WithTx. The mock has no transaction
// support, so it returns the receiver unchanged.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// Task returns the stored task for direct assertions, or nil.
func (m *MockTaskStore) Task(date string) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[date]; ok {
		return copyTask(task)
	}
	return nil
}

func copyTask(task *domain.Task) *domain.Task {
	clone := *task
	if task.PublishedAt != nil {
		publishedAt := *task.PublishedAt
		clone.PublishedAt = &publishedAt
	}
	return &clone
}

// MockArticleStore is an in-memory implementation of store.ArticleStore
// for testing, with the same overridable Fn fields as MockTaskStore.
type MockArticleStore struct {
	mu       sync.Mutex
	articles map[uuid.UUID]*domain.Article

	InsertManyFn           func(ctx context.Context, articles []*domain.Article) error
	GetPendingFn           func(ctx context.Context, date string, limit int) ([]*domain.Article, error)
	MarkProcessingFn       func(ctx context.Context, ids []uuid.UUID) error
	UpdateBatchFn          func(ctx context.Context, updates []store.ArticleUpdate) error
	GetCompletedFn         func(ctx context.Context, date string) ([]*domain.Article, error)
	GetFailedFn            func(ctx context.Context, date string) ([]*domain.Article, error)
	ResetFailedFn          func(ctx context.Context, date string, maxRetries int) (int64, error)
	ResetStaleProcessingFn func(ctx context.Context, date string, olderThan time.Duration) (int64, error)
}

// NewMockArticleStore creates an empty MockArticleStore.
func NewMockArticleStore() *MockArticleStore {
	return &MockArticleStore{
		articles: make(map[uuid.UUID]*domain.Article),
	}
}

// InsertMany implements store.ArticleStore.InsertMany.
func (m *MockArticleStore) InsertMany(ctx context.Context, articles []*domain.Article) error {
	if m.InsertManyFn != nil {
		return m.InsertManyFn(ctx, articles)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, article := range articles {
		for _, existing := range m.articles {
			if existing.TaskDate == article.TaskDate && existing.Rank == article.Rank {
				return fmt.Errorf("%w: date %s rank %d", store.ErrRankExists, article.TaskDate, article.Rank)
			}
		}
	}
	for _, article := range articles {
		clone := *article
		m.articles[article.ID] = &clone
	}
	return nil
}

// GetPending implements store.ArticleStore.GetPending.
func (m *MockArticleStore) GetPending(ctx context.Context, date string, limit int) ([]*domain.Article, error) {
	if m.GetPendingFn != nil {
		return m.GetPendingFn(ctx, date, limit)
	}

	pending := m.listByStatus(date, domain.ArticleStatusPending)
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkProcessing implements store.ArticleStore.MarkProcessing. As in
// the real store, the claim only applies to rows still pending; a row
// already claimed aborts the whole call without mutating anything,
// mirroring the rolled-back transaction.
func (m *MockArticleStore) MarkProcessing(ctx context.Context, ids []uuid.UUID) error {
	if m.MarkProcessingFn != nil {
		return m.MarkProcessingFn(ctx, ids)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	claimable := 0
	for _, id := range ids {
		if article, ok := m.articles[id]; ok && article.Status == domain.ArticleStatusPending {
			claimable++
		}
	}
	if claimable != len(ids) {
		return fmt.Errorf("%w: claimed %d of %d articles",
			store.ErrClaimLost, claimable, len(ids))
	}

	for _, id := range ids {
		article := m.articles[id]
		article.Status = domain.ArticleStatusProcessing
		article.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// UpdateBatch implements store.ArticleStore.UpdateBatch.
func (m *MockArticleStore) UpdateBatch(ctx context.Context, updates []store.ArticleUpdate) error {
	if m.UpdateBatchFn != nil {
		return m.UpdateBatchFn(ctx, updates)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, update := range updates {
		article, ok := m.articles[update.ID]
		if !ok {
			return store.ErrArticleNotFound
		}
		article.Status = update.Status
		article.TitleZH = update.TitleZH
		article.ContentSummaryZH = update.ContentSummaryZH
		article.CommentSummaryZH = update.CommentSummaryZH
		article.ErrorMessage = update.ErrorMessage
		article.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// GetCompleted implements store.ArticleStore.GetCompleted.
func (m *MockArticleStore) GetCompleted(ctx context.Context, date string) ([]*domain.Article, error) {
	if m.GetCompletedFn != nil {
		return m.GetCompletedFn(ctx, date)
	}
	return m.listByStatus(date, domain.ArticleStatusCompleted), nil
}

// GetFailed implements store.ArticleStore.GetFailed.
func (m *MockArticleStore) GetFailed(ctx context.Context, date string) ([]*domain.Article, error) {
	if m.GetFailedFn != nil {
		return m.GetFailedFn(ctx, date)
	}
	return m.listByStatus(date, domain.ArticleStatusFailed), nil
}

// ResetFailed implements store.ArticleStore.ResetFailed.
func (m *MockArticleStore) ResetFailed(ctx context.Context, date string, maxRetries int) (int64, error) {
	if m.ResetFailedFn != nil {
		return m.ResetFailedFn(ctx, date, maxRetries)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var reset int64
	for _, article := range m.articles {
		if article.TaskDate == date && article.CanRetry(maxRetries) {
			article.Status = domain.ArticleStatusPending
			article.ErrorMessage = ""
			article.RetryCount++
			article.UpdatedAt = time.Now().UTC()
			reset++
		}
	}
	return reset, nil
}

// ResetStaleProcessing implements store.ArticleStore.ResetStaleProcessing.
func (m *MockArticleStore) ResetStaleProcessing(ctx context.Context, date string, olderThan time.Duration) (int64, error) {
	if m.ResetStaleProcessingFn != nil {
		return m.ResetStaleProcessingFn(ctx, date, olderThan)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var reset int64
	for _, article := range m.articles {
		if article.TaskDate == date &&
			article.Status == domain.ArticleStatusProcessing &&
			article.UpdatedAt.Before(cutoff) {
			article.Status = domain.ArticleStatusPending
			article.UpdatedAt = time.Now().UTC()
			reset++
		}
	}
	return reset, nil
}

// WithTx implements store.ArticleStore.WithTx by returning the receiver.
func (m *MockArticleStore) WithTx(tx *sql.Tx) store.ArticleStore {
	return m
}

// Article returns the stored article for direct assertions, or nil.
func (m *MockArticleStore) Article(id uuid.UUID) *domain.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if article, ok := m.articles[id]; ok {
		clone := *article
		return &clone
	}
	return nil
}

// SetUpdatedAt backdates an article's updated_at for staleness tests.
func (m *MockArticleStore) SetUpdatedAt(id uuid.UUID, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if article, ok := m.articles[id]; ok {
		article.UpdatedAt = updatedAt
	}
}

func (m *MockArticleStore) listByStatus(date string, status domain.ArticleStatus) []*domain.Article {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Article
	for _, article := range m.articles {
		if article.TaskDate == date && article.Status == status {
			clone := *article
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Rank < matched[j].Rank
	})
	return matched
}

func (m *MockArticleStore) countByStatus(date string, status domain.ArticleStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, article := range m.articles {
		if article.TaskDate == date && article.Status == status {
			count++
		}
	}
	return count
}

// MockBatchAuditStore is an in-memory implementation of
// store.BatchAuditStore for testing.
type MockBatchAuditStore struct {
	mu     sync.Mutex
	audits []*domain.BatchAudit

	InsertFn     func(ctx context.Context, audit *domain.BatchAudit) error
	NextIndexFn  func(ctx context.Context, date string) (int, error)
	ListByDateFn func(ctx context.Context, date string) ([]*domain.BatchAudit, error)
}

// NewMockBatchAuditStore creates an empty MockBatchAuditStore.
func NewMockBatchAuditStore() *MockBatchAuditStore {
	return &MockBatchAuditStore{}
}

// Insert implements store.BatchAuditStore.Insert. The (task_date,
// batch_index) pair is unique, as in the real table's primary key.
func (m *MockBatchAuditStore) Insert(ctx context.Context, audit *domain.BatchAudit) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, audit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.audits {
		if existing.TaskDate == audit.TaskDate && existing.BatchIndex == audit.BatchIndex {
			return fmt.Errorf("%w: batch %s/%d",
				store.ErrDuplicate, audit.TaskDate, audit.BatchIndex)
		}
	}

	clone := *audit
	m.audits = append(m.audits, &clone)
	return nil
}

// NextIndex implements store.BatchAuditStore.NextIndex.
func (m *MockBatchAuditStore) NextIndex(ctx context.Context, date string) (int, error) {
	if m.NextIndexFn != nil {
		return m.NextIndexFn(ctx, date)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	max := 0
	for _, audit := range m.audits {
		if audit.TaskDate == date && audit.BatchIndex > max {
			max = audit.BatchIndex
		}
	}
	return max + 1, nil
}

// ListByDate implements store.BatchAuditStore.ListByDate.
func (m *MockBatchAuditStore) ListByDate(ctx context.Context, date string) ([]*domain.BatchAudit, error) {
	if m.ListByDateFn != nil {
		return m.ListByDateFn(ctx, date)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.BatchAudit
	for _, audit := range m.audits {
		if audit.TaskDate == date {
			clone := *audit
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].BatchIndex < matched[j].BatchIndex
	})
	return matched, nil
}

// WithTx implements store.BatchAuditStore.WithTx by returning the receiver.
func (m *MockBatchAuditStore) WithTx(tx *sql.Tx) store.BatchAuditStore {
	return m
}

// MockTxRunner implements store.TxRunner without a database: it invokes
// the function with a nil transaction, relying on the mock stores'
// WithTx returning the receiver.
type MockTxRunner struct {
	RunTxFn func(ctx context.Context, fn store.TxFn) error
}

// NewMockTxRunner creates a MockTxRunner.
func NewMockTxRunner() *MockTxRunner {
	return &MockTxRunner{}
}

// RunTx implements store.TxRunner.RunTx.
func (m *MockTxRunner) RunTx(ctx context.Context, fn store.TxFn) error {
	if m.RunTxFn != nil {
		return m.RunTxFn(ctx, fn)
	}
	return fn(ctx, nil)
}
