//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
)

// ---- Mock MaterialRepository ----

type MockMaterialRepo struct {
	mu    sync.RWMutex
	items map[string]*model.Material
}

func NewMockMaterialRepo(items ...*model.Material) *MockMaterialRepo {
	m := &MockMaterialRepo{items: map[string]*model.Material{}}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

var _ repository.MaterialRepository = (*MockMaterialRepo)(nil)

func (m *MockMaterialRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// ---- Mock AccessCodeRepository ----

type MockAccessCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.AccessCode
	order []string

	CreateErr error
}

func NewMockAccessCodeRepo() *MockAccessCodeRepo {
	return &MockAccessCodeRepo{codes: map[string]*model.AccessCode{}}
}

var _ repository.AccessCodeRepository = (*MockAccessCodeRepo)(nil)

// Seed adds available pool codes for materialID and returns their ids.
func (m *MockAccessCodeRepo) Seed(materialID string, codes ...string) []string {
	ids := make([]string, 0, len(codes))
	for _, c := range codes {
		ac := &model.AccessCode{Code: c, MaterialID: materialID, Status: model.AccessCodeAvailable}
		_ = m.Create(context.Background(), repository.NoTX, ac)
		ids = append(ids, ac.ID)
	}
	return ids
}

func (m *MockAccessCodeRepo) insertLocked(c *model.AccessCode) error {
	for _, ex := range m.codes {
		if ex.MaterialID == c.MaterialID && strings.EqualFold(ex.Code, c.Code) {
			return domain.ErrAlreadyExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = model.NormalizeCode(c.Code)
	cp := *c
	m.codes[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MockAccessCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.AccessCode) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(c)
}

func (m *MockAccessCodeRepo) CreateBatch(ctx context.Context, tx repository.Tx, codes []*model.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range codes {
		c.Status = model.AccessCodeAvailable
		if err := m.insertLocked(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockAccessCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockAccessCodeRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.AccessCodeStatus, limit int) ([]*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AccessCode
	for _, id := range m.order {
		if c := m.codes[id]; c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockAccessCodeRepo) CountAvailable(ctx context.Context, tx repository.Tx, materialID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.codes {
		if c.MaterialID == materialID && c.Status == model.AccessCodeAvailable && !c.Used {
			n++
		}
	}
	return n, nil
}

func (m *MockAccessCodeRepo) ClaimAvailable(ctx context.Context, tx repository.Tx, materialID, claimant string, at time.Time) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		c := m.codes[id]
		if c.MaterialID == materialID && c.Status == model.AccessCodeAvailable && !c.Used {
			m.markUsed(c, claimant, at)
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNoCodeAvailable
}

func (m *MockAccessCodeRepo) ClaimByCode(ctx context.Context, tx repository.Tx, materialID, code, claimant string, at time.Time) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = model.NormalizeCode(code)
	for _, c := range m.codes {
		if c.MaterialID == materialID && c.Code == code && c.Redeemable() {
			m.markUsed(c, claimant, at)
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrInvalidCode
}

func (m *MockAccessCodeRepo) markUsed(c *model.AccessCode, claimant string, at time.Time) {
	c.Used = true
	c.UsedAt = &at
	c.UsedBy = &claimant
}

func (m *MockAccessCodeRepo) Review(ctx context.Context, tx repository.Tx, id string, to model.AccessCodeStatus, reviewer string, notes *string, at time.Time) (bool, error) {
	if to != model.AccessCodeApproved && to != model.AccessCodeRejected {
		return false, domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok || c.Status != model.AccessCodePending {
		return false, nil
	}
	c.Status = to
	c.ApprovedBy = &reviewer
	c.ApprovedAt = &at
	c.AdminNotes = notes
	return true, nil
}

// UsedCount reports how many codes have been consumed.
func (m *MockAccessCodeRepo) UsedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.codes {
		if c.Used {
			n++
		}
	}
	return n
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	codes     *MockAccessCodeRepo
	materials *MockMaterialRepo

	CreateErr error
}

func NewMockPaymentRepo(codes *MockAccessCodeRepo, materials *MockMaterialRepo) *MockPaymentRepo {
	return &MockPaymentRepo{payments: map[string]*model.Payment{}, codes: codes, materials: materials}
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func (m *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.payments {
		if ex.ExternalID == p.ExternalID {
			return domain.ErrAlreadyExists
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) SetReference(ctx context.Context, tx repository.Tx, id, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Reference == nil {
		p.Reference = &reference
	}
	return nil
}

func (m *MockPaymentRepo) RecordCallback(ctx context.Context, tx repository.Tx, id string, reference *string, raw json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	if reference != nil {
		p.Reference = reference
	}
	if raw != nil {
		p.CallbackData = raw
	}
	return true, nil
}

func (m *MockPaymentRepo) TransitionFromPending(ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, reference *string, raw json.RawMessage) (bool, error) {
	if !to.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = to
	if reference != nil {
		p.Reference = reference
	}
	if raw != nil {
		p.CallbackData = raw
	}
	return true, nil
}

func (m *MockPaymentRepo) AttachAccessCode(ctx context.Context, tx repository.Tx, id, accessCodeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusSuccess || p.AccessCodeID != nil {
		return false, nil
	}
	p.AccessCodeID = &accessCodeID
	return true, nil
}

func (m *MockPaymentRepo) AttachSubscription(ctx context.Context, tx repository.Tx, id, subscriptionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusSuccess || p.SubscriptionID != nil {
		return false, nil
	}
	p.SubscriptionID = &subscriptionID
	return true, nil
}

func (m *MockPaymentRepo) View(ctx context.Context, tx repository.Tx, id, externalID string) (*model.PaymentView, error) {
	var p *model.Payment
	var err error
	if id != "" {
		p, err = m.FindByID(ctx, tx, id)
	} else {
		p, err = m.FindByExternalID(ctx, tx, externalID)
	}
	if err != nil {
		return nil, err
	}
	v := &model.PaymentView{
		ID:         p.ID,
		ExternalID: p.ExternalID,
		Status:     p.Status,
		Amount:     p.Amount,
		Provider:   p.Provider,
		CreatedAt:  p.CreatedAt,
	}
	if p.AccessCodeID != nil && m.codes != nil {
		if c, err := m.codes.FindByID(ctx, tx, *p.AccessCodeID); err == nil {
			v.AccessCode = &c.Code
		}
	}
	if p.MaterialID != nil && m.materials != nil {
		if mat, err := m.materials.FindByID(ctx, tx, *p.MaterialID); err == nil {
			v.Material = &model.MaterialLink{Title: mat.Title, DriveLink: mat.DriveLink}
		}
	}
	return v, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores p directly, bypassing Create.
func (m *MockPaymentRepo) Put(p *model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
}

func (m *MockPaymentRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

// ---- Mock PremiumSubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.PremiumSubscription // by user id
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{subs: map[string]*model.PremiumSubscription{}}
}

var _ repository.PremiumSubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) byIDLocked(id string) *model.PremiumSubscription {
	for _, s := range m.subs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PremiumSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byIDLocked(id)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.PremiumSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) CreateRequest(ctx context.Context, tx repository.Tx, sub *model.PremiumSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.UserID]; ok {
		return domain.ErrAlreadyExists
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) Approve(ctx context.Context, tx repository.Tx, id, approver string, expiresAt *time.Time, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byIDLocked(id)
	if s == nil {
		return domain.ErrNotFound
	}
	s.Approved = true
	s.ApprovedBy = &approver
	s.ApprovedAt = &at
	s.ExpiresAt = expiresAt
	s.UpdatedAt = at
	return nil
}

func (m *MockSubscriptionRepo) Revoke(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byIDLocked(id)
	if s == nil {
		return domain.ErrNotFound
	}
	s.Approved = false
	s.UpdatedAt = at
	return nil
}

func (m *MockSubscriptionRepo) Grant(ctx context.Context, tx repository.Tx, userID, approver string, expiresAt time.Time, at time.Time) (*model.PremiumSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		s = &model.PremiumSubscription{ID: uuid.NewString(), UserID: userID, CreatedAt: at}
		m.subs[userID] = s
	}
	s.Approved = true
	s.ApprovedBy = &approver
	s.ApprovedAt = &at
	s.ExpiresAt = &expiresAt
	s.UpdatedAt = at
	cp := *s
	return &cp, nil
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu      sync.Mutex
	charges []adapter.ChargeRequest

	AuthErr   error
	ChargeErr error
	TxnID     string
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) Authenticate(ctx context.Context) (string, error) {
	if g.AuthErr != nil {
		return "", g.AuthErr
	}
	return "token", nil
}

func (g *MockPaymentGateway) Charge(ctx context.Context, token string, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.ChargeErr != nil {
		return nil, g.ChargeErr
	}
	return &adapter.ChargeResult{TransactionID: g.TxnID, Message: "pushed"}, nil
}

func (g *MockPaymentGateway) Charges() []adapter.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]adapter.ChargeRequest(nil), g.charges...)
}

// ---- Mock AdminNotifier ----

type MockNotifier struct {
	mu       sync.Mutex
	messages []string
	Err      error
}

var _ adapter.AdminNotifier = (*MockNotifier)(nil)

func (n *MockNotifier) NotifyAdmins(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.Err
}

func (n *MockNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{counts: map[string]int{}}
}

func (l *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

var errBoom = errors.New("boom")

func testMaterial(id string, price int64) *model.Material {
	return &model.Material{
		ID:        id,
		Title:     fmt.Sprintf("Form Four Mathematics %s", id),
		DriveLink: "https://drive.example/" + id,
		Enabled:   true,
		Price:     price,
	}
}
