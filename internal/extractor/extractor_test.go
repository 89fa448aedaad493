package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/platform"
	"github.com/elsanchez/smart-extract/internal/registry"
	"github.com/elsanchez/smart-extract/internal/repository/sqlite"
	"github.com/elsanchez/smart-extract/internal/session"
)

const reelURL = "https://www.instagram.com/reel/CAbc/?igsh=xyz"

// callLog registra el orden de las llamadas a la plataforma y a la pausa
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakePlatform struct {
	log         *callLog
	loginErr    error
	metadataErr error
	commentsErr error
	media       *platform.Media
	comments    []platform.Comment
	gotLimit    int
	// se ejecutan dentro de la llamada, p.ej. para cancelar el request a mitad
	onMetadata func()
	onComments func()
}

func (f *fakePlatform) Login(context.Context, platform.Credentials) error {
	f.log.add("login")
	return f.loginErr
}

func (f *fakePlatform) ResolveID(_ context.Context, code string) (string, error) {
	f.log.add("resolve")
	return platform.MediaIDFromShortcode(code)
}

func (f *fakePlatform) FetchMetadata(context.Context, string) (*platform.Media, error) {
	f.log.add("metadata")
	if f.onMetadata != nil {
		f.onMetadata()
	}
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.media, nil
}

func (f *fakePlatform) FetchComments(_ context.Context, _ string, limit int) ([]platform.Comment, error) {
	f.log.add("comments")
	f.gotLimit = limit
	if f.onComments != nil {
		f.onComments()
	}
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments, nil
}

// fakeRegistry cuenta lecturas y escrituras
type fakeRegistry struct {
	mu          sync.Mutex
	account     *domain.Account
	fetchErr    error
	usage       []int64
	transitions []domain.HealthTransition
}

func (r *fakeRegistry) FetchNextAccount(context.Context) (*domain.Account, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if r.account == nil {
		return nil, nil
	}
	acc := *r.account
	return &acc, nil
}

func (r *fakeRegistry) ReportUsage(_ context.Context, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, id)
}

func (r *fakeRegistry) ReportStatus(_ context.Context, t domain.HealthTransition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

type harness struct {
	log      *callLog
	platform *fakePlatform
	registry *fakeRegistry
	ext      *Extractor
	pauses   []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{log: &callLog{}}
	h.platform = &fakePlatform{
		log: h.log,
		media: &platform.Media{
			Caption:        "Lemon pasta",
			MediaType:      platform.MediaTypeVideo,
			VideoURL:       "https://cdn.example/v.mp4",
			ThumbnailURL:   "https://cdn.example/t.jpg",
			AuthorUsername: "chef",
		},
		comments: []platform.Comment{{Text: "yum"}, {Text: ""}, {Text: "recipe please"}},
	}
	h.registry = &fakeRegistry{account: &domain.Account{ID: 11, Username: "rotator", Secret: "pw", Status: domain.HealthActive, IsActive: true}}

	h.ext = h.build(h.registry)
	return h
}

func (h *harness) build(reg Registry, opts ...Option) *Extractor {
	sessions := session.NewManager(func() platform.Client { return h.platform }, reg, zerolog.Nop())
	opts = append(opts, WithPause(func(_ context.Context, d time.Duration) error {
		h.log.add("pause")
		h.pauses = append(h.pauses, d)
		return nil
	}))
	return New(reg, sessions, Options{Cooldown: time.Second}, zerolog.Nop(), opts...)
}

func TestExtract_Success(t *testing.T) {
	h := newHarness(t)

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)

	want := &domain.ExtractionResult{
		Success:      true,
		Caption:      "Lemon pasta",
		Comments:     []string{"yum", "recipe please"},
		VideoURL:     "https://cdn.example/v.mp4",
		ThumbnailURL: "https://cdn.example/t.jpg",
		PostURL:      reelURL,
		Username:     "chef",
		MediaType:    domain.MediaVideo,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"login", "resolve", "metadata", "pause", "comments"}, h.log.list())
	assert.Equal(t, []time.Duration{time.Second}, h.pauses)
	assert.Equal(t, DefaultCommentLimit, h.platform.gotLimit)
	assert.Equal(t, []int64{11}, h.registry.usage)
	assert.Empty(t, h.registry.transitions)
}

func TestExtract_PhotoDropsVideoURL(t *testing.T) {
	h := newHarness(t)
	h.platform.media = &platform.Media{
		Caption:   "photo",
		MediaType: platform.MediaTypePhoto,
		VideoURL:  "https://cdn.example/should-not-leak.mp4",
	}

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)

	assert.Equal(t, domain.MediaPhoto, result.MediaType)
	assert.Empty(t, result.VideoURL)
	assert.Empty(t, result.ThumbnailURL)
	assert.Equal(t, domain.UnknownAuthor, result.Username)
}

func TestExtract_CarouselIsPhoto(t *testing.T) {
	h := newHarness(t)
	h.platform.media = &platform.Media{MediaType: platform.MediaTypeCarousel, ThumbnailURL: "https://cdn.example/t.jpg"}

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaPhoto, result.MediaType)
	assert.Equal(t, "https://cdn.example/t.jpg", result.ThumbnailURL)
}

func TestExtract_VideoWithoutURL(t *testing.T) {
	h := newHarness(t)
	h.platform.media = &platform.Media{MediaType: platform.MediaTypeVideo}

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaVideo, result.MediaType)
	assert.Empty(t, result.VideoURL)
}

func TestExtract_InvalidInput(t *testing.T) {
	for _, u := range []string{
		"https://www.youtube.com/watch?v=abc",
		"https://www.instagram.com/chef/",
		"",
	} {
		t.Run(u, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.ext.Extract(context.Background(), u)
			require.Error(t, err)
			assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
			assert.Empty(t, h.log.list())
			assert.Empty(t, h.registry.usage)
		})
	}
}

func TestExtract_NoAccountsAvailable(t *testing.T) {
	h := newHarness(t)
	h.registry.account = nil

	_, err := h.ext.Extract(context.Background(), reelURL)
	require.Error(t, err)
	assert.Equal(t, domain.KindNoAccountsAvailable, domain.KindOf(err))
	assert.Equal(t, NoAccountsHint, domain.HintOf(err))
	assert.Empty(t, h.log.list(), "no platform calls expected")
}

func TestExtract_RegistryReadFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	h.registry.fetchErr = errors.New("connection refused")

	_, err := h.ext.Extract(context.Background(), reelURL)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.ErrorIs(t, err, h.registry.fetchErr)
	assert.Empty(t, h.log.list())
}

func TestExtract_LoginChallenge(t *testing.T) {
	h := newHarness(t)
	h.platform.loginErr = platform.NewError(platform.CodeChallengeRequired, "checkpoint")

	_, err := h.ext.Extract(context.Background(), reelURL)
	require.Error(t, err)
	assert.Equal(t, domain.KindAccountChallenged, domain.KindOf(err))
	assert.Equal(t, []domain.HealthTransition{{AccountID: 11, Status: domain.HealthBanned, Deactivate: true}}, h.registry.transitions)
	assert.Empty(t, h.registry.usage)
	assert.Equal(t, []string{"login"}, h.log.list())
}

func TestExtract_MetadataFailures(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantKind       domain.Kind
		wantTransition bool
	}{
		{"rate limited", platform.NewError(platform.CodeRateLimited, "please wait"), domain.KindRateLimited, true},
		{"not found", platform.NewError(platform.CodeNotFound, "media_not_found"), domain.KindNotFound, false},
		{"generic", errors.New("502 bad gateway"), domain.KindUpstream, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.platform.metadataErr = tt.err

			_, err := h.ext.Extract(context.Background(), reelURL)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))

			// Sin pausa ni comentarios tras un fallo de metadata
			assert.Equal(t, []string{"login", "resolve", "metadata"}, h.log.list())
			assert.Empty(t, h.registry.usage)

			if tt.wantTransition {
				assert.Equal(t, []domain.HealthTransition{{AccountID: 11, Status: domain.HealthRateLimited, Deactivate: true}}, h.registry.transitions)
			} else {
				assert.Empty(t, h.registry.transitions)
			}
		})
	}
}

func TestExtract_CommentFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.platform.commentsErr = platform.NewError(platform.CodeRateLimited, "comments throttled")

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)

	assert.NotNil(t, result.Comments)
	assert.Empty(t, result.Comments)
	assert.Equal(t, "Lemon pasta", result.Caption)
	assert.Equal(t, "https://cdn.example/v.mp4", result.VideoURL)
	assert.Equal(t, []int64{11}, h.registry.usage)
	assert.Empty(t, h.registry.transitions)
}

func TestExtract_CommentsCapped(t *testing.T) {
	h := newHarness(t)
	h.platform.comments = nil
	for i := 0; i < 80; i++ {
		h.platform.comments = append(h.platform.comments, platform.Comment{Text: fmt.Sprintf("c%d", i)})
	}

	result, err := h.ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)
	assert.Len(t, result.Comments, DefaultCommentLimit)
	assert.Equal(t, "c0", result.Comments[0])
}

func TestExtract_CancelledDuringPause(t *testing.T) {
	h := newHarness(t)
	sessions := session.NewManager(func() platform.Client { return h.platform }, h.registry, zerolog.Nop())
	ext := New(h.registry, sessions, Options{Cooldown: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ext.Extract(ctx, reelURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.registry.usage)
}

// registryOutage simula un registro cuyas escrituras fallan siempre
type registryOutage struct {
	account *domain.Account
}

func (r *registryOutage) NextAccount(context.Context) (*domain.Account, error) {
	return r.account, nil
}

func (r *registryOutage) UpdateAccount(context.Context, registry.AccountUpdate) error {
	return errors.New("registry write outage")
}

func TestExtract_RegistryWriteOutageDoesNotAffectResult(t *testing.T) {
	h := newHarness(t)
	reg := registry.NewClient(&registryOutage{account: &domain.Account{ID: 5, Username: "u"}}, zerolog.Nop())
	ext := h.build(reg)

	result, err := ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)
	assert.True(t, result.Success)

	h.platform.metadataErr = platform.NewError(platform.CodeRateLimited, "wait")
	_, err = ext.Extract(context.Background(), reelURL)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
}

func TestExtract_RecordsHistory(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	h := newHarness(t)
	ext := h.build(h.registry, WithHistory(db.ExtractionRepo))

	_, err = ext.Extract(context.Background(), reelURL)
	require.NoError(t, err)
	_, err = ext.Extract(context.Background(), "https://example.com/p/x")
	require.Error(t, err)

	stats, err := db.ExtractionRepo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByOutcome[domain.OutcomeSuccess])
	assert.Equal(t, 1, stats.ByOutcome[domain.KindInvalidInput.String()])

	recent, err := db.ExtractionRepo.GetRecent(context.Background(), 10)
	require.NoError(t, err)
	for _, r := range recent {
		if r.Succeeded() {
			assert.Equal(t, "CAbc", r.Shortcode)
			require.NotNil(t, r.AccountID)
			assert.Equal(t, int64(11), *r.AccountID)
		}
	}
}

// Con el registro SQLite real: dos peticiones concurrentes antes de reportar uso reciben la misma cuenta
func TestRotation_ConcurrentRequestsMayShareAccount(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	first, err := db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	require.NoError(t, err)
	_, err = db.AccountRepo.Create(ctx, &domain.Account{Username: "b", Secret: "y", IsActive: true})
	require.NoError(t, err)

	reg := registry.NewClient(registry.NewLocal(db.AccountRepo, domain.PlatformInstagram), zerolog.Nop())

	var wg sync.WaitGroup
	got := make([]int64, 2)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := reg.FetchNextAccount(ctx)
			if assert.NoError(t, err) && assert.NotNil(t, acc) {
				got[i] = acc.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int64{first, first}, got)
}

func TestRotation_AfterRateLimit(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	a, _ := db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	b, _ := db.AccountRepo.Create(ctx, &domain.Account{Username: "b", Secret: "y", IsActive: true})

	h := newHarness(t)
	reg := registry.NewClient(registry.NewLocal(db.AccountRepo, domain.PlatformInstagram), zerolog.Nop())
	ext := h.build(reg)

	h.platform.metadataErr = platform.NewError(platform.CodeRateLimited, "wait")
	_, err = ext.Extract(ctx, reelURL)
	require.Equal(t, domain.KindRateLimited, domain.KindOf(err))

	accA, _ := db.AccountRepo.GetByID(ctx, a)
	assert.Equal(t, domain.HealthRateLimited, accA.Status)
	assert.False(t, accA.IsActive)

	next, err := reg.FetchNextAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, b, next.ID)

	h.platform.metadataErr = nil
	_, err = ext.Extract(ctx, reelURL)
	require.NoError(t, err)

	accB, _ := db.AccountRepo.GetByID(ctx, b)
	assert.EqualValues(t, 1, accB.UsageCount)
}

func TestRotation_AfterChallenge(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	a, _ := db.AccountRepo.Create(ctx, &domain.Account{Username: "a", Secret: "x", IsActive: true})
	b, _ := db.AccountRepo.Create(ctx, &domain.Account{Username: "b", Secret: "y", IsActive: true})

	h := newHarness(t)
	reg := registry.NewClient(registry.NewLocal(db.AccountRepo, domain.PlatformInstagram), zerolog.Nop())
	ext := h.build(reg)

	h.platform.loginErr = platform.NewError(platform.CodeChallengeRequired, "checkpoint")
	_, err = ext.Extract(ctx, reelURL)
	require.Equal(t, domain.KindAccountChallenged, domain.KindOf(err))

	accA, _ := db.AccountRepo.GetByID(ctx, a)
	assert.Equal(t, domain.HealthBanned, accA.Status)
	assert.False(t, accA.IsActive)
	assert.Nil(t, accA.LastUsed)

	next, err := reg.FetchNextAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, b, next.ID)
}

// El cliente se va justo después de que la plataforma responde 429: la cuenta igual sale de la rotación
func TestRotation_RateLimitSurvivesCancelledRequest(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	a, _ := db.AccountRepo.Create(context.Background(), &domain.Account{Username: "a", Secret: "x", IsActive: true})

	h := newHarness(t)
	reg := registry.NewClient(registry.NewLocal(db.AccountRepo, domain.PlatformInstagram), zerolog.Nop())
	ext := h.build(reg)

	ctx, cancel := context.WithCancel(context.Background())
	h.platform.onMetadata = cancel
	h.platform.metadataErr = platform.NewError(platform.CodeRateLimited, "wait")

	_, err = ext.Extract(ctx, reelURL)
	require.Equal(t, domain.KindRateLimited, domain.KindOf(err))

	acc, err := db.AccountRepo.GetByID(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthRateLimited, acc.Status)
	assert.False(t, acc.IsActive)
}

func TestRotation_UsageSurvivesCancelledComments(t *testing.T) {
	db, err := sqlite.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	a, _ := db.AccountRepo.Create(context.Background(), &domain.Account{Username: "a", Secret: "x", IsActive: true})

	h := newHarness(t)
	reg := registry.NewClient(registry.NewLocal(db.AccountRepo, domain.PlatformInstagram), zerolog.Nop())
	ext := h.build(reg)

	ctx, cancel := context.WithCancel(context.Background())
	h.platform.onComments = cancel
	h.platform.commentsErr = context.Canceled

	res, err := ext.Extract(ctx, reelURL)
	require.NoError(t, err)
	assert.Empty(t, res.Comments)

	acc, err := db.AccountRepo.GetByID(context.Background(), a)
	require.NoError(t, err)
	assert.EqualValues(t, 1, acc.UsageCount)
	assert.NotNil(t, acc.LastUsed)
}
