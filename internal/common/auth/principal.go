package auth

import (
	"fmt"
	"strconv"
)

// Principal 调用方身份：管理员 / 供应商 / 客户三选一。
// 在边界层解析一次，之后显式传给核心操作，核心不再碰 token。
type Principal struct {
	Kind  string // RoleAdmin / RoleProvider / RoleClient
	ID    uint
	Email string
}

// NewPrincipal 从 token 的 subject/email/roles 构造身份。
// subject 必须是数字 ID；roles 里取第一个平台已知角色。
func NewPrincipal(subject, email string, roles []string) (Principal, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, fmt.Errorf("invalid subject: %q", subject)
	}

	kind := ""
	for _, r := range roles {
		switch {
		case r == RoleAdmin || r == RoleProvider || r == RoleClient:
			kind = r
		}
		if kind != "" {
			break
		}
	}
	if kind == "" {
		return Principal{}, fmt.Errorf("no platform role in %v", roles)
	}

	return Principal{Kind: kind, ID: uint(id), Email: email}, nil
}

func (p Principal) IsAdmin() bool    { return p.Kind == RoleAdmin }
func (p Principal) IsProvider() bool { return p.Kind == RoleProvider }
func (p Principal) IsClient() bool   { return p.Kind == RoleClient }
