package auth

import "github.com/secureblog/apiserver/types"

// Landing-page destinations, keyed by role after a successful login.
const (
	DestAdmin    = "/admin"
	DestSecurity = "/security"
	DestPosts    = "/posts"
	DestLogin    = "/auth/login"
)

var landing = map[types.Role]string{
	types.RoleDBAdmin:  DestAdmin,
	types.RoleSecAdmin: DestSecurity,
	types.RoleEndUser:  DestPosts,
}

// Landing returns the destination a freshly authenticated session is
// routed to. Unknown roles fall through to the posts listing.
func Landing(role types.Role) string {
	if dest, ok := landing[role]; ok {
		return dest
	}
	return DestPosts
}

// Authorized reports whether role satisfies the required set. An empty
// required set admits any authenticated role.
func Authorized(role types.Role, required ...types.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if role == want {
			return true
		}
	}
	return false
}
