package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"repairshop-backend/database"
	"repairshop-backend/middlewares"
	"repairshop-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RegisterDTO struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserCreateDTO struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"omitempty,oneof=admin staff"`
}

var errRegistrationClosed = errors.New("registration closed")

func newUser(firstName, lastName, email, password, role string) (*models.User, error) {
	user := &models.User{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return user, nil
}

// POST /api/registration
// Only works while no users exist; the first account becomes the shop admin.
func Register(c *fiber.Ctx) error {
	var in RegisterDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	user, err := newUser(in.FirstName, in.LastName, in.Email, in.Password, models.RoleAdmin)
	if err != nil {
		return err
	}

	err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errRegistrationClosed
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, errRegistrationClosed) {
		return fiber.NewError(fiber.StatusForbidden, "registration is closed, ask an admin for an account")
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// POST /api/login
func Login(auth *middlewares.JWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in LoginDTO
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}

		var user models.User
		err := database.DB.WithContext(c.UserContext()).
			Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).
			First(&user).Error
		if err != nil || user.ComparePassword(in.Password) != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}

		token, expires, err := auth.GenerateJWT(user.Id, user.Role)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token":      token,
			"expires_at": expires,
			"user": fiber.Map{
				"id":    user.Id,
				"name":  user.FirstName + " " + user.LastName,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	}
}

// POST /api/logout
// Tokens are stateless; clearing the legacy cookie is all the server can do.
func Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return c.JSON(fiber.Map{
		"message": "success",
	})
}

// GET /api/me
func Me(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var user models.User
	if err := db.First(&user, "id = ?", middlewares.CurrentUserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "user no longer exists")
		}
		return err
	}
	return c.JSON(user)
}

// POST /api/users (admin)
func CreateUser(c *fiber.Ctx) error {
	var in UserCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	role := in.Role
	if role == "" {
		role = models.RoleStaff
	}
	user, err := newUser(in.FirstName, in.LastName, in.Email, in.Password, role)
	if err != nil {
		return err
	}
	if err := db.Create(user).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GET /api/users (admin)
func GetUsers(c *fiber.Ctx) error {
	db, err := requestDB(c)
	if err != nil {
		return err
	}
	var users []models.User
	if err := db.Order("created_at ASC").Find(&users).Error; err != nil {
		return err
	}
	return listJSON(c, "users", users, int64(len(users)))
}
