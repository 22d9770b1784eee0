package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	categorydomain "affirmation-wave/backend/internal/category/domain"
	reflectiondomain "affirmation-wave/backend/internal/reflection/domain"
	reflectionrepo "affirmation-wave/backend/internal/reflection/repository"
	reflectionservice "affirmation-wave/backend/internal/reflection/service"
	"affirmation-wave/backend/internal/speech"
	userdomain "affirmation-wave/backend/internal/user/domain"
	wavedomain "affirmation-wave/backend/internal/wave/domain"
	waverepo "affirmation-wave/backend/internal/wave/repository"
	waveservice "affirmation-wave/backend/internal/wave/service"
)

// memStore backs the engine, scheduler, and principal middleware for route
// tests. One struct implements every repository interface the server needs.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*userdomain.User
	categories   map[string]*categorydomain.Category
	sessions     map[string]*reflectiondomain.Session
	affirmations map[string]*reflectiondomain.Affirmation
	waves        map[string]*wavedomain.Wave
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*userdomain.User),
		categories:   make(map[string]*categorydomain.Category),
		sessions:     make(map[string]*reflectiondomain.Session),
		affirmations: make(map[string]*reflectiondomain.Affirmation),
		waves:        make(map[string]*wavedomain.Wave),
	}
}

func (m *memStore) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByPrincipal(_ context.Context, principalID string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PrincipalID == principalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) IncrementCompletedSessions(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	u.CompletedSessionCount++
	return u.CompletedSessionCount, nil
}

func (m *memStore) categoryByID(_ context.Context, id string) (*categorydomain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*reflectiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSessionsByUser(_ context.Context, userID string) ([]*reflectiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reflectiondomain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateSession(_ context.Context, s *reflectiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) UpdateSession(_ context.Context, s *reflectiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) GetAffirmation(_ context.Context, id string) (*reflectiondomain.Affirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.affirmations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAffirmations(_ context.Context, sessionID string) ([]*reflectiondomain.Affirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reflectiondomain.Affirmation
	for _, a := range m.affirmations {
		if a.SessionID == sessionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memStore) CountAffirmations(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.affirmations {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateAffirmation(_ context.Context, a *reflectiondomain.Affirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.affirmations[a.ID] = &cp
	return nil
}

func (m *memStore) UpdateAffirmation(_ context.Context, a *reflectiondomain.Affirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.affirmations[a.ID] = &cp
	return nil
}

func (m *memStore) DeleteAffirmation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.affirmations, id)
	return nil
}

func (m *memStore) GetSelectedAffirmation(_ context.Context, sessionID string) (*reflectiondomain.Affirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.affirmations {
		if a.SessionID == sessionID && a.IsSelected {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SelectAffirmation(_ context.Context, sessionID, affirmationID, audioURL, voice string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.affirmations[affirmationID]
	if !ok || target.SessionID != sessionID {
		return reflectionrepo.ErrAffirmationNotFound
	}
	for _, a := range m.affirmations {
		if a.SessionID == sessionID && a.ID != affirmationID {
			a.IsSelected = false
		}
	}
	target.IsSelected = true
	if audioURL != "" {
		target.AudioURL = audioURL
	}
	if voice != "" {
		target.TTSVoicePreference = voice
	}
	s := m.sessions[sessionID]
	s.GeneratedAffirmation = target.AffirmationText
	s.AIAffirmationAudioURL = target.AudioURL
	s.UpdatedAt = at
	return nil
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]*wavedomain.Wave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*wavedomain.Wave
	for _, w := range m.waves {
		if w.SessionID == sessionID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetWaveByID(_ context.Context, id string) (*wavedomain.Wave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) CreateActive(_ context.Context, w *wavedomain.Wave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.waves {
		if existing.SessionID == w.SessionID && existing.IsActive {
			return waverepo.ErrActiveWaveExists
		}
	}
	cp := *w
	cp.IsActive = true
	m.waves[w.ID] = &cp
	w.IsActive = true
	return nil
}

func (m *memStore) UpdateWave(_ context.Context, w *wavedomain.Wave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.IsActive {
		for _, existing := range m.waves {
			if existing.SessionID == w.SessionID && existing.IsActive && existing.ID != w.ID {
				return waverepo.ErrActiveWaveExists
			}
		}
	}
	cp := *w
	m.waves[w.ID] = &cp
	return nil
}

func (m *memStore) DeleteWave(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waves, id)
	return nil
}

// waveRepoAdapter exposes the memStore's wave methods under the scheduler's
// repository method names.
type waveRepoAdapter struct{ *memStore }

func (a waveRepoAdapter) GetByID(ctx context.Context, id string) (*wavedomain.Wave, error) {
	return a.memStore.GetWaveByID(ctx, id)
}
func (a waveRepoAdapter) Update(ctx context.Context, w *wavedomain.Wave) error {
	return a.memStore.UpdateWave(ctx, w)
}
func (a waveRepoAdapter) Delete(ctx context.Context, id string) error {
	return a.memStore.DeleteWave(ctx, id)
}

type categoryRepoAdapter struct{ *memStore }

func (a categoryRepoAdapter) GetByID(ctx context.Context, id string) (*categorydomain.Category, error) {
	return a.memStore.categoryByID(ctx, id)
}

func (a categoryRepoAdapter) List(_ context.Context) ([]*categorydomain.Category, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*categorydomain.Category
	for _, c := range a.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a categoryRepoAdapter) Create(_ context.Context, c *categorydomain.Category) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *c
	a.categories[c.ID] = &cp
	return nil
}

type stubSpeech struct{}

func (stubSpeech) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "Money is scarce", nil
}

func (stubSpeech) Transform(_ context.Context, belief string) (*speech.Transformation, error) {
	return &speech.Transformation{LimitingBelief: belief, AffirmationText: "Money flows to me with ease."}, nil
}

func (stubSpeech) Synthesize(_ context.Context, _, _ string) (string, error) {
	return "https://assets.example.com/audio/ai.mp3", nil
}

func (stubSpeech) Store(_ context.Context, _ []byte) (string, error) {
	return "https://assets.example.com/audio/user.mp3", nil
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	store.categories["cat-money"] = &categorydomain.Category{
		ID: "cat-money", Name: "Money", Prompt: "What belief about money is holding you back?",
	}
	sp := stubSpeech{}
	engine := reflectionservice.NewEngine(
		store, store, store, categoryRepoAdapter{store},
		sp, sp, sp, sp, "calm-female-1", nil)
	scheduler := waveservice.NewScheduler(waveRepoAdapter{store}, store, nil)
	return NewServer(engine, scheduler, store, categoryRepoAdapter{store}, nil), store
}

func doRequest(t *testing.T, s *Server, method, path, principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var out sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func TestHealthNoAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMissingPrincipalRejected(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPrincipalAutoProvisioned(t *testing.T) {
	s, store := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions", "principal-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	u, _ := store.GetByPrincipal(context.Background(), "principal-1")
	if u == nil {
		t.Fatal("first contact should provision a user")
	}

	// A second request resolves the same user instead of creating another.
	doRequest(t, s, http.MethodGet, "/api/v1/sessions", "principal-1", "")
	store.mu.Lock()
	n := len(store.users)
	store.mu.Unlock()
	if n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestListCategories(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories", "principal-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out []categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "cat-money" || out[0].Prompt == "" {
		t.Errorf("categories = %+v", out)
	}
}

func TestSessionWorkflowOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	const principal = "principal-1"

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", principal, `{"category_id":"cat-money"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	created := decodeSession(t, rec)
	if created.Status != string(reflectiondomain.StatusPending) {
		t.Errorf("status = %s, want PENDING", created.Status)
	}
	if created.Prompt == "" {
		t.Errorf("prompt should be copied from category")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/belief", principal, `{"text":"Money is scarce"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit belief: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if got := decodeSession(t, rec).Status; got != string(reflectiondomain.StatusBeliefCaptured) {
		t.Errorf("status = %s, want BELIEF_CAPTURED", got)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/affirmations", principal, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	generated := decodeSession(t, rec)
	if generated.Status != string(reflectiondomain.StatusAffirmationGenerated) {
		t.Errorf("status = %s, want AFFIRMATION_GENERATED", generated.Status)
	}
	if len(generated.Affirmations) != 1 || !generated.Affirmations[0].IsSelected {
		t.Fatalf("affirmations = %+v, want one selected", generated.Affirmations)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/waves", principal, `{"duration_days":7}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create wave: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	withWave := decodeSession(t, rec)
	if len(withWave.Waves) != 1 || !withWave.Waves[0].IsActive {
		t.Fatalf("waves = %+v, want one active", withWave.Waves)
	}
	if got, want := withWave.Waves[0].EndDate, withWave.Waves[0].StartDate.AddDate(0, 0, 7); !got.Equal(want) {
		t.Errorf("endDate = %v, want %v", got, want)
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	const principal = "principal-1"

	// Unknown session: 404.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions/nope", principal, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions", principal, `{"category_id":"cat-money"}`)
	created := decodeSession(t, rec)

	// Generating before a belief is captured: 409.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/affirmations", principal, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("generate on PENDING: status = %d, want 409", rec.Code)
	}

	// Belief with neither text nor audio: 400.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/belief", principal, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty belief: status = %d, want 400", rec.Code)
	}

	// Invalid wave duration: 400 after the workflow reaches the right state.
	doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/belief", principal, `{"text":"Money is scarce"}`)
	doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/affirmations", principal, "")
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/waves", principal, `{"duration_days":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad duration: status = %d, want 400", rec.Code)
	}

	// Second active wave: 409.
	doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/waves", principal, `{"duration_days":7}`)
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/waves", principal, `{"duration_days":14}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second active wave: status = %d, want 409", rec.Code)
	}
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", "principal-1", `{"category_id":"cat-money"}`)
	created := decodeSession(t, rec)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/sessions/"+created.ID, "principal-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign session read: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/sessions/"+created.ID, "principal-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign session delete: status = %d, want 404", rec.Code)
	}
}
