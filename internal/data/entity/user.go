package entity

type User struct {
	Base
	FullName     string  `db:"full_name"`
	Email        string  `db:"email"`
	PasswordHash string  `db:"password"`
	Phone        *string `db:"phone"`
	IsActive     bool    `db:"is_active"`
}
