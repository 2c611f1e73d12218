package handlers

import (
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

type RegisterRequest struct {
	FullName       string `json:"full_name" validate:"required,min=3"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	Role           string `json:"role" validate:"omitempty,oneof=seeker companion"`
	ReferredByCode string `json:"referred_by_code,omitempty"`
	City           string `json:"city" validate:"required_if=Role companion"`
	Area           string `json:"area"`
	Headline       string `json:"headline" validate:"max=255"`
}

type UserResponse struct {
	ID                 string                    `json:"id"`
	FullName           string                    `json:"full_name"`
	Email              string                    `json:"email"`
	Role               models.Role               `json:"role"`
	VerificationStatus models.VerificationStatus `json:"verification_status"`
	ReferralCode       *string                   `json:"referral_code"`
	CreatedAt          time.Time                 `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Accounts.Register(c.UserContext(), services.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		Role:           models.Role(req.Role),
		ReferredByCode: req.ReferredByCode,
		City:           req.City,
		Area:           req.Area,
		Headline:       req.Headline,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:                 user.ID.String(),
		FullName:           user.FullName,
		Email:              user.Email,
		Role:               user.Role,
		VerificationStatus: user.VerificationStatus,
		ReferralCode:       user.ReferralCode,
		CreatedAt:          user.CreatedAt,
	})
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	ttl := h.Settings.JWTTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(h.Settings.JWTSecret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}

	return c.JSON(fiber.Map{"token": t, "role": user.Role})
}
