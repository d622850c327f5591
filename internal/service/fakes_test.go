package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/events"
)

// memoryStore implements the report, comment and profile repositories over maps.
type memoryStore struct {
	mu       sync.Mutex
	reports  map[string]models.WasteReport
	comments []models.Comment
	profiles map[string]*models.UserProfile
	seq      int64
	failNext error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reports:  map[string]models.WasteReport{},
		profiles: map[string]*models.UserProfile{},
	}
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memoryStore) Create(ctx context.Context, report *models.WasteReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.reports[report.ID] = *report
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.WasteReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.ReportFilter) ([]models.WasteReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WasteReport, 0, len(m.reports))
	for _, r := range m.reports {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReportedAt.After(out[j].ReportedAt)
	})
	return out, nil
}

func (m *memoryStore) MarkCleaned(ctx context.Context, params models.MarkCleanedParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[params.ReportID]
	if !ok {
		return 0, nil
	}
	if params.OnlyIfUncleaned && r.IsCleaned() {
		return 0, nil
	}
	at, by := params.CleanedAt, params.CleanedBy
	r.Status = models.ReportStatusCleaned
	r.CleanedAt = &at
	r.CleanedBy = &by
	m.reports[r.ID] = r
	return 1, nil
}

type memoryComments struct{ *memoryStore }

func (c memoryComments) Create(ctx context.Context, comment *models.Comment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments = append(c.comments, *comment)
	return nil
}

func (c memoryComments) ListByReport(ctx context.Context, reportID string) ([]models.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Comment, 0)
	for i := len(c.comments) - 1; i >= 0; i-- {
		if c.comments[i].WasteReportID == reportID {
			out = append(out, c.comments[i])
		}
	}
	return out, nil
}

type memoryProfiles struct{ *memoryStore }

func (p memoryProfiles) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *profile
	return &copy, nil
}

func (p memoryProfiles) Ensure(ctx context.Context, seed models.ProfileSeed) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.profiles[seed.UserID]; ok {
		return false, nil
	}
	p.seq++
	p.profiles[seed.UserID] = &models.UserProfile{
		Seq:            p.seq,
		ID:             seed.ID,
		UserID:         seed.UserID,
		DisplayName:    seed.DisplayName,
		ProfileImageID: seed.ProfileImageID,
		JoinedAt:       seed.JoinedAt,
	}
	return true, nil
}

func (p memoryProfiles) UpdateIdentity(ctx context.Context, patch models.ProfileIdentityPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if profile, ok := p.profiles[patch.UserID]; ok {
		profile.DisplayName = patch.DisplayName
		profile.ProfileImageID = patch.ProfileImageID
	}
	return nil
}

func (p memoryProfiles) IncrementReports(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if ok {
		profile.ReportsCount++
	}
	return ok, nil
}

func (p memoryProfiles) IncrementCleanups(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if ok {
		profile.CleanupsCount++
	}
	return ok, nil
}

func (p memoryProfiles) ListTopByReports(ctx context.Context, limit int) ([]models.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.UserProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		out = append(out, *profile)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportsCount != out[j].ReportsCount {
			return out[i].ReportsCount > out[j].ReportsCount
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeMedia resolves known ids to fixed URLs and stores uploads unless failing.
type fakeMedia struct {
	mu      sync.Mutex
	known   map[string]bool
	fail    bool
	stored  int
	delayFn func(id string) time.Duration
}

func newFakeMedia(known ...string) *fakeMedia {
	m := &fakeMedia{known: map[string]bool{}}
	for _, id := range known {
		m.known[id] = true
	}
	return m
}

func (m *fakeMedia) ResolveURL(ctx context.Context, id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	if m.delayFn != nil {
		select {
		case <-time.After(m.delayFn(*id)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[*id] {
		return nil, nil
	}
	url := "https://files.test/" + *id
	return &url, nil
}

func (m *fakeMedia) Store(ctx context.Context, upload dto.ImageUpload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", appErrors.ErrUploadFailed
	}
	m.stored++
	id := fmt.Sprintf("img-%d", m.stored)
	m.known[id] = true
	return id, nil
}

// memoryCache is an always-on leaderboard cache.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]dto.LeaderboardEntry
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]dto.LeaderboardEntry{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]dto.LeaderboardEntry)) = v
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value.([]dto.LeaderboardEntry)
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.invalidated++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type harness struct {
	store    *memoryStore
	media    *fakeMedia
	cache    *memoryCache
	events   *recordingPublisher
	reports  *ReportService
	profiles *ProfileService
	metrics  *MetricsService
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one second per call so timestamps are strictly increasing.
func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newHarness(cfg ReportConfig) *harness {
	store := newMemoryStore()
	media := newFakeMedia()
	cache := newMemoryCache()
	pub := &recordingPublisher{}
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	metrics := NewMetricsService()

	profiles := NewProfileService(memoryProfiles{store}, store, cache, media, nil, nil, nil, ProfileConfig{DefaultName: "Usuário"})
	profiles.now = clock.Now
	composer := NewViewComposer(memoryProfiles{store}, media, "Usuário Anônimo", 4)
	reports := NewReportService(ReportDeps{
		Reports:  store,
		Comments: memoryComments{store},
		Ledger:   profiles,
		Composer: composer,
		Images:   media,
		Tx:       store,
		Events:   pub,
		Metrics:  metrics,
	}, cfg)
	reports.now = clock.Now

	return &harness{store: store, media: media, cache: cache, events: pub, reports: reports, profiles: profiles, metrics: metrics, clock: clock}
}

func as(userID, name string) context.Context {
	return WithCaller(context.Background(), &models.Caller{UserID: userID, Name: name})
}

func ptr[T any](v T) *T { return &v }

func reportRequest(desc, wasteType string) dto.CreateReportRequest {
	return dto.CreateReportRequest{
		Latitude:    ptr(10.0),
		Longitude:   ptr(20.0),
		Description: desc,
		WasteType:   wasteType,
	}
}
