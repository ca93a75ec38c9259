package fakeuserrepo

import (
	"errors"
	"strconv"
	"sync"

	"github.com/jrsteele09/go-school-admin/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[users.ID]*users.User
	emailIds map[string]users.ID // email to user id
	order    []users.ID          // insertion order, used for stable paging
	nextID   int
	lock     sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:    make(map[users.ID]*users.User),
		emailIds: make(map[string]users.ID),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	if user == nil || user.Email == "" {
		return errors.New("user email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if existingID, ok := ur.emailIds[user.Email]; ok && user.ID == "" {
		user.ID = existingID
	}
	if user.ID == "" {
		ur.nextID++
		user.ID = users.ID(strconv.Itoa(ur.nextID))
	}
	if _, ok := ur.users[user.ID]; !ok {
		ur.order = append(ur.order, user.ID)
	}
	ur.users[user.ID] = user
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[email]
	if !ok {
		return errors.New("not found")
	}
	delete(ur.emailIds, email)
	delete(ur.users, userID)

	for i, id := range ur.order {
		if id == userID {
			ur.order = append(ur.order[:i], ur.order[i+1:]...)
			break
		}
	}
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id users.ID) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	list, _, err := ur.ListByRole("", offset, limit)
	return list, err
}

// ListByRole pages through users in insertion order. An empty role matches everyone.
// The second return value is the total number of matches before paging.
func (ur *FakeUserRepo) ListByRole(role users.RoleType, offset, limit int) ([]*users.User, int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	matched := make([]*users.User, 0, len(ur.order))
	for _, id := range ur.order {
		u := ur.users[id]
		if role != "" && u.Role != role {
			continue
		}
		matched = append(matched, u)
	}

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*users.User{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}
