package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"wallserv/src/app"
)

type (
	// InMemoryDB keeps images and users in process memory. It backs
	// STORE_DRIVER=memory and the tests.
	InMemoryDB struct {
		mu     sync.RWMutex
		images []*app.Image
		users  map[primitive.ObjectID]*app.User
	}

	memoryImages struct{ db *InMemoryDB }
	memoryUsers  struct{ db *InMemoryDB }
)

func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{users: make(map[primitive.ObjectID]*app.User)}
}

func (db *InMemoryDB) Images() app.ImageStore { return memoryImages{db} }

func (db *InMemoryDB) Users() app.UserStore { return memoryUsers{db} }

func copyImage(img *app.Image) app.Image {
	c := *img
	if img.Tags != nil {
		c.Tags = append([]string{}, img.Tags...)
	}
	return c
}

func (db *InMemoryDB) imageIndex(id primitive.ObjectID) int {
	for i, img := range db.images {
		if img.ID == id {
			return i
		}
	}
	return -1
}

func (m memoryImages) Insert(_ context.Context, images []*app.Image) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	seen := make(map[primitive.ObjectID]bool, len(images))
	for _, img := range images {
		if seen[img.ID] || m.db.imageIndex(img.ID) >= 0 {
			return fmt.Errorf("%w: image %s already exists", app.ErrConflict, img.ID.Hex())
		}
		seen[img.ID] = true
	}
	for _, img := range images {
		stored := copyImage(img)
		m.db.images = append(m.db.images, &stored)
	}
	return nil
}

func (m memoryImages) Find(_ context.Context, q app.ImageQuery, skip, limit int64) ([]app.Image, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	result := []app.Image{}
	var matched int64
	for _, img := range m.db.images {
		if !q.Matches(img) {
			continue
		}
		matched++
		if matched <= skip {
			continue
		}
		result = append(result, copyImage(img))
		if limit > 0 && int64(len(result)) == limit {
			break
		}
	}
	return result, nil
}

func (m memoryImages) Count(_ context.Context, q app.ImageQuery) (int64, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var count int64
	for _, img := range m.db.images {
		if q.Matches(img) {
			count++
		}
	}
	return count, nil
}

func (m memoryImages) Get(_ context.Context, id primitive.ObjectID) (*app.Image, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	i := m.db.imageIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: image not found", app.ErrNotFound)
	}
	img := copyImage(m.db.images[i])
	return &img, nil
}

func (m memoryImages) Update(_ context.Context, id primitive.ObjectID, update app.ImageUpdate, now time.Time) (*app.Image, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	i := m.db.imageIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: image not found", app.ErrNotFound)
	}
	update.ApplyTo(m.db.images[i], now)
	img := copyImage(m.db.images[i])
	return &img, nil
}

func (m memoryImages) Delete(_ context.Context, id primitive.ObjectID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	i := m.db.imageIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: image not found", app.ErrNotFound)
	}
	m.db.images = append(m.db.images[:i], m.db.images[i+1:]...)
	return nil
}

func (m memoryImages) Increment(_ context.Context, id primitive.ObjectID, counter app.Counter, now time.Time) (*app.Image, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	i := m.db.imageIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: image not found", app.ErrNotFound)
	}
	stored := m.db.images[i]
	switch counter {
	case app.CounterViews:
		stored.Views++
	case app.CounterLikes:
		stored.Likes++
	case app.CounterDownloads:
		stored.Downloads++
	default:
		return nil, fmt.Errorf("unknown counter %q", counter)
	}
	stored.UpdatedAt = now
	img := copyImage(stored)
	return &img, nil
}

func (m memoryImages) Categories(_ context.Context) ([]string, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	seen := map[string]bool{}
	categories := []string{}
	for _, img := range m.db.images {
		if img.Category == "" || seen[img.Category] {
			continue
		}
		seen[img.Category] = true
		categories = append(categories, img.Category)
	}
	return categories, nil
}

// Sample picks up to size distinct records uniformly at random.
func (m memoryImages) Sample(_ context.Context, size int) ([]app.Image, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	if size > len(m.db.images) {
		size = len(m.db.images)
	}
	result := make([]app.Image, 0, size)
	for _, i := range rand.Perm(len(m.db.images))[:size] {
		result = append(result, copyImage(m.db.images[i]))
	}
	return result, nil
}

func (m memoryUsers) emailTaken(email string, except primitive.ObjectID) bool {
	for id, u := range m.db.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (m memoryUsers) Create(_ context.Context, user *app.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.emailTaken(user.Email, primitive.NilObjectID) {
		return fmt.Errorf("%w: email %s", app.ErrConflict, user.Email)
	}
	stored := *user
	m.db.users[user.ID] = &stored
	return nil
}

func (m memoryUsers) ByID(_ context.Context, id primitive.ObjectID) (*app.User, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", app.ErrNotFound)
	}
	user := *u
	return &user, nil
}

func (m memoryUsers) ByEmail(_ context.Context, email string) (*app.User, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	for _, u := range m.db.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("%w: user not found", app.ErrNotFound)
}

func (m memoryUsers) Update(_ context.Context, id primitive.ObjectID, name, email string, now time.Time) (*app.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", app.ErrNotFound)
	}
	if m.emailTaken(email, id) {
		return nil, fmt.Errorf("%w: email %s", app.ErrConflict, email)
	}
	u.Name, u.Email, u.UpdatedAt = name, email, now
	user := *u
	return &user, nil
}

func (m memoryUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[id]; !ok {
		return fmt.Errorf("%w: user not found", app.ErrNotFound)
	}
	delete(m.db.users, id)
	return nil
}
