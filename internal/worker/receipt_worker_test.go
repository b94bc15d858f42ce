package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory ReceiptRepository stub ─────────────────────────────────────────

type stubReceiptRepo struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]*model.Receipt
}

func newStubReceiptRepo() *stubReceiptRepo {
	return &stubReceiptRepo{receipts: make(map[uuid.UUID]*model.Receipt)}
}

func (r *stubReceiptRepo) Create(_ context.Context, rc *model.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	cloned := *rc
	r.receipts[rc.ID] = &cloned
	return nil
}

func (r *stubReceiptRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return rc, nil
}

func (r *stubReceiptRepo) Update(_ context.Context, rc *model.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *rc
	r.receipts[rc.ID] = &cloned
	return nil
}

func (r *stubReceiptRepo) ListPendingRetries(_ context.Context, now time.Time, limit int) ([]model.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Receipt
	for _, rc := range r.receipts {
		if rc.Status == "pending" && rc.NextRetryAt != nil && !rc.NextRetryAt.After(now) {
			out = append(out, *rc)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ repository.ReceiptRepository = (*stubReceiptRepo)(nil)

func pendingReceipt(t *testing.T, repo *stubReceiptRepo) *model.Receipt {
	t.Helper()
	rc := &model.Receipt{
		AttemptID:        uuid.New(),
		BookingID:        "BK-1001",
		GuestEmail:       "guest@example.com",
		Amount:           decimal.NewFromInt(750),
		RemainingBalance: decimal.Zero,
		Status:           "pending",
	}
	require.NoError(t, repo.Create(context.Background(), rc))
	return rc
}

// ── Retry scheduling ─────────────────────────────────────────────────────────

func TestScheduleReceiptRetry_SetsBackoff(t *testing.T) {
	repo := newStubReceiptRepo()
	rc := pendingReceipt(t, repo)

	ScheduleReceiptRetry(context.Background(), nil, repo, rc, errors.New("smtp timeout"))

	stored, err := repo.FindByID(context.Background(), rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *stored.NextRetryAt, 5*time.Second)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "smtp timeout", *stored.LastError)
}

func TestScheduleReceiptRetry_MarksFailedAtMaxRetries(t *testing.T) {
	repo := newStubReceiptRepo()
	rc := pendingReceipt(t, repo)
	rc.RetryCount = model.MaxReceiptRetries - 1

	ScheduleReceiptRetry(context.Background(), nil, repo, rc, errors.New("mailbox unavailable"))

	stored, err := repo.FindByID(context.Background(), rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", stored.Status)
	assert.Equal(t, model.MaxReceiptRetries, stored.RetryCount)
	assert.Nil(t, stored.NextRetryAt)
}

func TestComputeRetryBackoff_Doubles(t *testing.T) {
	assert.Equal(t, time.Minute, computeRetryBackoff(1))
	assert.Equal(t, 2*time.Minute, computeRetryBackoff(2))
	assert.Equal(t, 4*time.Minute, computeRetryBackoff(3))
	assert.Equal(t, 8*time.Minute, computeRetryBackoff(4))
	// defensive floor
	assert.Equal(t, time.Minute, computeRetryBackoff(0))
}

func TestListPendingRetries_OnlyDueReceipts(t *testing.T) {
	repo := newStubReceiptRepo()

	due := pendingReceipt(t, repo)
	past := time.Now().Add(-time.Minute)
	due.NextRetryAt = &past
	require.NoError(t, repo.Update(context.Background(), due))

	notYet := pendingReceipt(t, repo)
	future := time.Now().Add(time.Hour)
	notYet.NextRetryAt = &future
	require.NoError(t, repo.Update(context.Background(), notYet))

	sent := pendingReceipt(t, repo)
	sent.Status = "sent"
	sent.NextRetryAt = &past
	require.NoError(t, repo.Update(context.Background(), sent))

	out, err := repo.ListPendingRetries(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, due.ID, out[0].ID)
}
