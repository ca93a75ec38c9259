package users

type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID ID) (*User, error)
	List(offset, limit int) ([]*User, error)
	ListByRole(role RoleType, offset, limit int) ([]*User, int, error)
}
