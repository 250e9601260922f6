package usercontext

import "github.com/gofiber/fiber/v2"

const localsKey = "USER_CONTEXT"

// UserContext is the request-scoped identity attached by the auth
// middleware.
type UserContext struct {
	UserID     uint
	Username   string
	IsLoggedIn bool
	IsAdmin    bool
}

// Set attaches the user context to the request.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
}

// Get returns the request's user context, or an anonymous one when the
// middleware did not run.
func Get(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(localsKey).(UserContext); ok {
		return uc
	}
	return UserContext{}
}
