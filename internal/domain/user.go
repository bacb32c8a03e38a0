package domain

import "time"

type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Username       string    `json:"username" dynamodbav:"username"`
	Email          string    `json:"email" dynamodbav:"email"`
	Phone          *string   `json:"phone" dynamodbav:"phone"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	Role           string    `json:"role" dynamodbav:"role"`
	FirstName      string    `json:"first_name" dynamodbav:"first_name"`
	LastName       string    `json:"last_name" dynamodbav:"last_name"`
	BirthDate      time.Time `json:"birth_date" dynamodbav:"birth_date"`
	EmailConfirmed bool      `json:"is_email_verified" dynamodbav:"email_confirmed"`
	PhoneConfirmed bool      `json:"is_phone_verified" dynamodbav:"phone_confirmed"`
	Enable         int       `json:"enable" dynamodbav:"enable"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

// CreateUserRequest mirrors the registration form: the password is typed twice.
type CreateUserRequest struct {
	Username  string  `json:"username" validate:"required,min=4,username"`
	Email     string  `json:"email" validate:"required,email,safeemail"`
	Password1 string  `json:"password1" validate:"required,min=8,max=72"`
	Password2 string  `json:"password2" validate:"required,eqfield=Password1"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateProfileRequest is the "about me" form.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,personname"`
	LastName  string `json:"last_name" validate:"required,personname"`
}
