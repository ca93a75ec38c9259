package fakestorage

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-school-admin/sessions"
)

var _ sessions.Storage = (*FakeStorage)(nil)

// FakeStorage is an in-memory Storage. It counts writes and can be told to fail.
type FakeStorage struct {
	values  map[string]string
	sets    int
	removes int
	failSet error
	lock    sync.RWMutex
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		values: make(map[string]string),
	}
}

func (fs *FakeStorage) Get(key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	v, ok := fs.values[key]
	return v, ok, nil
}

func (fs *FakeStorage) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if key == "" {
		return errors.New("key is required")
	}
	if fs.failSet != nil {
		return fs.failSet
	}
	fs.sets++
	fs.values[key] = value
	return nil
}

func (fs *FakeStorage) Remove(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.removes++
	delete(fs.values, key)
	return nil
}

// Put writes a raw value without counting it, e.g. to seed corrupt data.
func (fs *FakeStorage) Put(key, value string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[key] = value
}

// FailSets makes every following Set return err. A nil err clears the failure.
func (fs *FakeStorage) FailSets(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.failSet = err
}

func (fs *FakeStorage) Sets() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.sets
}

func (fs *FakeStorage) Removes() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.removes
}
