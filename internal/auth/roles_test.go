package auth

import (
	"testing"

	"github.com/secureblog/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestLanding(t *testing.T) {
	require.Equal(t, DestAdmin, Landing(types.RoleDBAdmin))
	require.Equal(t, DestSecurity, Landing(types.RoleSecAdmin))
	require.Equal(t, DestPosts, Landing(types.RoleEndUser))
	require.Equal(t, DestPosts, Landing(types.Role("unknown")))
}

func TestAuthorized(t *testing.T) {
	require.True(t, Authorized(types.RoleEndUser))
	require.True(t, Authorized(types.RoleSecAdmin, types.RoleSecAdmin))
	require.True(t, Authorized(types.RoleSecAdmin, types.RoleDBAdmin, types.RoleSecAdmin))
	require.False(t, Authorized(types.RoleEndUser, types.RoleSecAdmin))
	require.False(t, Authorized(types.RoleEndUser, types.RoleDBAdmin, types.RoleSecAdmin))
}
