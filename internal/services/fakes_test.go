package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/models"
	"github.com/isdelr/accounts-api/internal/notify"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	byID  map[string]models.User
	err   error // returned by every call when set
	calls []string
	// beforeCreate runs inside Create, used to simulate a concurrent insert.
	beforeCreate func()
	// beforeMarkVerified runs inside MarkVerified, used to simulate a
	// concurrent verification of the same token.
	beforeMarkVerified func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]models.User{}}
}

func (f *fakeUserRepo) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.err
}

func (f *fakeUserRepo) put(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if err := f.record("Create"); err != nil {
		return err
	}
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return common.ErrConflict
		}
	}
	f.byID[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := f.record("GetByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := f.record("GetByEmail"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	if err := f.record("Update"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return common.ErrNotFound
	}
	f.byID[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) MarkVerified(ctx context.Context, id, token string, at time.Time) error {
	if err := f.record("MarkVerified"); err != nil {
		return err
	}
	if f.beforeMarkVerified != nil {
		f.beforeMarkVerified()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.VerificationToken == nil || *u.VerificationToken != token {
		return common.ErrInvalidToken
	}
	u.Verified = true
	u.VerificationToken = nil
	u.TokenExpiresAt = nil
	u.UpdatedAt = at
	f.byID[id] = u
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []notify.VerificationMessage
	err  error
}

func (f *fakePublisher) PublishVerification(ctx context.Context, msg notify.VerificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fakeImageRepo struct {
	byUser    map[string]models.Image
	createErr error
	getErr    error
	deleted   []string
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{byUser: map[string]models.Image{}}
}

func (f *fakeImageRepo) Create(ctx context.Context, image *models.Image) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUser[image.UserID]; ok {
		return common.ErrConflict
	}
	f.byUser[image.UserID] = *image
	return nil
}

func (f *fakeImageRepo) GetByUserID(ctx context.Context, userID string) (*models.Image, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	img, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &img, nil
}

func (f *fakeImageRepo) Delete(ctx context.Context, id string) error {
	for uid, img := range f.byUser {
		if img.ID == id {
			delete(f.byUser, uid)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return common.ErrNotFound
}

type fakeStore struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
	ops       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	f.ops = append(f.ops, "put "+key)
	if f.putErr != nil {
		return "", f.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	if int64(buf.Len()) != size {
		return "", errors.New("size mismatch")
	}
	f.objects[key] = buf.Bytes()
	return "https://pics.example.com/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.ops = append(f.ops, "delete "+key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}
