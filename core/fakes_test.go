package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memUsers is an in-memory UserRepository.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*UserRecord
	movies map[string]bool
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*UserRecord{}, movies: map[string]bool{}}
}

func (m *memUsers) clone(u *UserRecord) *UserRecord {
	cp := *u
	cp.FavoriteMovies = append([]string{}, u.FavoriteMovies...)
	return &cp
}

func (m *memUsers) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return m.clone(u), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return m.clone(u), nil
}

func (m *memUsers) Create(ctx context.Context, in NewUser) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == in.Username {
			return nil, ErrUsernameTaken
		}
	}
	u := &UserRecord{
		ID:             uuid.NewString(),
		Username:       in.Username,
		PasswordHash:   in.PasswordHash,
		Email:          in.Email,
		Birthday:       in.Birthday,
		FavoriteMovies: []string{},
		CreatedAt:      time.Now(),
	}
	m.byID[u.ID] = u
	return m.clone(u), nil
}

func (m *memUsers) Update(ctx context.Context, id string, in UserUpdate) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if in.Username != nil {
		for _, other := range m.byID {
			if other.ID != id && other.Username == *in.Username {
				return nil, ErrUsernameTaken
			}
		}
		u.Username = *in.Username
	}
	if in.PasswordHash != nil {
		u.PasswordHash = *in.PasswordHash
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Birthday != nil {
		u.Birthday = in.Birthday
	}
	return m.clone(u), nil
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) AddFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok || !m.movies[movieID] {
		return nil, ErrRecordNotFound
	}
	for _, f := range u.FavoriteMovies {
		if f == movieID {
			return m.clone(u), nil
		}
	}
	u.FavoriteMovies = append(u.FavoriteMovies, movieID)
	return m.clone(u), nil
}

func (m *memUsers) RemoveFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	kept := u.FavoriteMovies[:0]
	for _, f := range u.FavoriteMovies {
		if f != movieID {
			kept = append(kept, f)
		}
	}
	u.FavoriteMovies = kept
	return m.clone(u), nil
}

// addUser stores a user with a low-cost hash of password.
func (m *memUsers) addUser(t *testing.T, username, password string) *UserRecord {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	rec, err := m.Create(context.Background(), NewUser{Username: username, PasswordHash: hash, Email: username + "@example.com"})
	require.NoError(t, err)
	return rec
}

var errStoreDown = errors.New("connection refused")

// brokenUsers fails every lookup with err.
type brokenUsers struct{ err error }

func (b brokenUsers) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return nil, b.err
}

func (b brokenUsers) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	return nil, b.err
}

// slowUsers blocks until the lookup context is done.
type slowUsers struct{}

func (slowUsers) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowUsers) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// memMovies is an in-memory MovieCatalog that counts List calls.
type memMovies struct {
	mu     sync.Mutex
	movies []Movie
	lists  int
	err    error
}

func (m *memMovies) List(ctx context.Context) ([]Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.err != nil {
		return nil, m.err
	}
	return append([]Movie{}, m.movies...), nil
}

func (m *memMovies) FindByTitle(ctx context.Context, title string) (*Movie, error) {
	for _, mv := range m.movies {
		if mv.Title == title {
			mv := mv
			return &mv, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memMovies) FindGenre(ctx context.Context, name string) (*Genre, error) {
	for _, mv := range m.movies {
		if mv.Genre.Name == name {
			g := mv.Genre
			return &g, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memMovies) FindDirector(ctx context.Context, name string) (*Director, error) {
	for _, mv := range m.movies {
		if mv.Director.Name == name {
			d := mv.Director
			return &d, nil
		}
	}
	return nil, ErrRecordNotFound
}

func sampleMovies() []Movie {
	return []Movie{
		{
			ID:          "9f0c1a52-6f7e-4c1a-9d55-2c9d7b0f2a11",
			Title:       "Inception",
			Description: "A thief steals secrets through dreams.",
			Genre:       Genre{Name: "Sci-Fi", Description: "Speculative fiction."},
			Director:    Director{Name: "Christopher Nolan", Bio: "British-American filmmaker."},
			Actors:      []string{"Leonardo DiCaprio"},
			Featured:    true,
		},
		{
			ID:          "1b7e2c44-0d3a-4f45-8a0b-6a3f1f9e5c22",
			Title:       "Heat",
			Description: "A detective hunts a crew of robbers.",
			Genre:       Genre{Name: "Crime", Description: "Stories about crime."},
			Director:    Director{Name: "Michael Mann", Bio: "American director."},
			Actors:      []string{"Al Pacino", "Robert De Niro"},
		},
	}
}
