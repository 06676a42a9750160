package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

// Staff is the caller identity carried by an access token. BranchCode is
// the branch every request from that device is scoped to.
type Staff struct {
	UserID     uuid.UUID       `json:"user_id"`
	BranchCode string          `json:"branch_code"`
	Role       enums.StaffRole `json:"role"`
}

func (s Staff) validate() error {
	switch {
	case strings.TrimSpace(s.BranchCode) == "":
		return errors.New("branch code is required")
	case !s.Role.IsValid():
		return errors.New("invalid staff role " + string(s.Role))
	}
	return nil
}

// HasRole reports whether the staff member holds any of roles.
func (s Staff) HasRole(roles ...enums.StaffRole) bool {
	for _, role := range roles {
		if s.Role == role {
			return true
		}
	}
	return false
}

// Claims is the JWT body: the staff identity flattened next to the
// registered claims.
type Claims struct {
	Staff
	jwt.RegisteredClaims
}
