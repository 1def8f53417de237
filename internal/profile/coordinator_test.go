// ABOUTME: Tests for the profile sync coordinator
// ABOUTME: Covers seeding, partial-save reporting, idempotence, serialization

package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory RecordStore with optional fault injection and a
// per-call delay for serialization tests.
type memStore struct {
	mu       sync.Mutex
	records  map[string]Profile
	failWith error
	delay    time.Duration
	writes   []Profile // every applied write, in order
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Profile)}
}

func (s *memStore) Create(ctx context.Context, p Profile) error {
	if s.failWith != nil {
		return s.failWith
	}
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.Email]; ok {
		return nil // duplicate create is a success marker
	}
	s.records[p.Email] = p
	s.writes = append(s.writes, p)
	return nil
}

func (s *memStore) Get(ctx context.Context, email string) (Lookup, error) {
	if s.failWith != nil {
		return Lookup{}, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[email]
	if !ok {
		return Lookup{Found: false}, nil
	}
	return Lookup{Found: true, Profile: p}, nil
}

func (s *memStore) Update(ctx context.Context, email string, p Profile) error {
	if s.failWith != nil {
		return s.failWith
	}
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[email]; !ok {
		return ErrNotFound
	}
	s.records[email] = p
	s.writes = append(s.writes, p)
	return nil
}

// fakeDisplay records display-name updates and can fail on demand.
type fakeDisplay struct {
	mu       sync.Mutex
	name     string
	avatar   string
	failWith error
	delay    time.Duration
	updates  []string
}

func (d *fakeDisplay) UpdateDisplayIdentity(ctx context.Context, name, avatarURL string) error {
	if d.failWith != nil {
		return d.failWith
	}
	time.Sleep(d.delay)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
	d.avatar = avatarURL
	d.updates = append(d.updates, name)
	return nil
}

func TestLoadProfile_SeedsOnNotFound(t *testing.T) {
	c := NewCoordinator(newMemStore(), &fakeDisplay{})

	p, err := c.LoadProfile(context.Background(), "new@b.com", "Jane Doe")
	require.NoError(t, err, "a missing profile is never surfaced as an error")
	assert.Equal(t, "new@b.com", p.Email)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Empty(t, p.University)
	assert.Empty(t, p.Address)
	assert.Empty(t, p.Phone)
}

func TestLoadProfile_ReturnsStoredRecord(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Stored Name", University: "MIT"}
	c := NewCoordinator(store, &fakeDisplay{})

	p, err := c.LoadProfile(context.Background(), "a@b.com", "Provider Name")
	require.NoError(t, err)
	assert.Equal(t, "Stored Name", p.Name, "the store's copy is authoritative once it exists")
	assert.Equal(t, "MIT", p.University)
}

func TestSaveProfile_BothSidesConverge(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Old"}
	display := &fakeDisplay{}
	c := NewCoordinator(store, display)

	err := c.SaveProfile(context.Background(),
		Profile{Email: "a@b.com", Name: "Jane", Phone: "555"}, "https://img.example/j.png")
	require.NoError(t, err)

	assert.Equal(t, "Jane", display.name)
	assert.Equal(t, "Jane", store.records["a@b.com"].Name,
		"display name and stored name converge after a fully-successful save")
	assert.Equal(t, "555", store.records["a@b.com"].Phone)
}

func TestSaveProfile_StoreFailureIsPartial(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Old"}
	store.failWith = errors.New("store down")
	display := &fakeDisplay{}
	c := NewCoordinator(store, display)

	err := c.SaveProfile(context.Background(), Profile{Email: "a@b.com", Name: "Jane", Phone: "555"}, "")

	var partial *PartialSaveError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, SideProfileStore, partial.FailedSide)

	// Diverged: provider took the new name, the store kept the old one.
	assert.Equal(t, "Jane", display.name)
	assert.Equal(t, "Old", store.records["a@b.com"].Name)

	// Retrying the whole save after the store recovers converges both sides.
	store.failWith = nil
	require.NoError(t, c.SaveProfile(context.Background(), Profile{Email: "a@b.com", Name: "Jane", Phone: "555"}, ""))
	assert.Equal(t, "Jane", store.records["a@b.com"].Name)
}

func TestSaveProfile_DisplayFailureIsPartial(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Old"}
	display := &fakeDisplay{failWith: errors.New("provider down")}
	c := NewCoordinator(store, display)

	err := c.SaveProfile(context.Background(), Profile{Email: "a@b.com", Name: "Jane"}, "")

	var partial *PartialSaveError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, SideIdentityProvider, partial.FailedSide)
	assert.Equal(t, "Jane", store.records["a@b.com"].Name)
}

func TestSaveProfile_Idempotent(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Old"}
	c := NewCoordinator(store, &fakeDisplay{})

	p := Profile{Email: "a@b.com", Name: "Jane", University: "MIT", Phone: "555"}
	require.NoError(t, c.SaveProfile(context.Background(), p, ""))
	once := store.records["a@b.com"]

	require.NoError(t, c.SaveProfile(context.Background(), p, ""))
	assert.Equal(t, once, store.records["a@b.com"],
		"saving the same profile twice produces the same stored state")
}

func TestSaveProfile_CreatesRecordForInteractiveAccounts(t *testing.T) {
	store := newMemStore()
	c := NewCoordinator(store, &fakeDisplay{})

	require.NoError(t, c.SaveProfile(context.Background(),
		Profile{Email: "ext@b.com", Name: "Jane"}, ""))
	assert.Equal(t, "Jane", store.records["ext@b.com"].Name,
		"accounts that never ran registration get a record on first save")
}

func TestSaveProfile_SameEmailSerialized(t *testing.T) {
	store := newMemStore()
	store.records["a@b.com"] = Profile{Email: "a@b.com", Name: "Old"}
	store.delay = 20 * time.Millisecond
	display := &fakeDisplay{delay: 20 * time.Millisecond}
	c := NewCoordinator(store, display)

	var wg sync.WaitGroup
	first := Profile{Email: "a@b.com", Name: "First", Phone: "111"}
	second := Profile{Email: "a@b.com", Name: "Second", Phone: "222"}

	wg.Add(2)
	go func() {
		defer wg.Done()
		require.NoError(t, c.SaveProfile(context.Background(), first, ""))
	}()
	time.Sleep(5 * time.Millisecond) // let the first save take the lock
	go func() {
		defer wg.Done()
		require.NoError(t, c.SaveProfile(context.Background(), second, ""))
	}()
	wg.Wait()

	// Writes from the two calls never interleave: the store sees First
	// completely, then Second completely.
	require.Len(t, store.writes, 2)
	assert.Equal(t, "First", store.writes[0].Name)
	assert.Equal(t, "Second", store.writes[1].Name)
	require.Len(t, display.updates, 2)
	assert.Equal(t, []string{"First", "Second"}, display.updates)

	// A third reader observes the second call's complete state.
	assert.Equal(t, "Second", store.records["a@b.com"].Name)
	assert.Equal(t, "222", store.records["a@b.com"].Phone)
}
