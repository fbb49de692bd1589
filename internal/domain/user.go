// Package domain 定义操作主体（acting user）模型。
// 用户注册、登录和资料管理由外部认证服务负责，本服务只消费
// 其签发的令牌中还原出的身份信息，用于填充流水的 created_by。
package domain

// UserRole 定义用户角色类型
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"  // 管理员，可执行盘点、批量调整等管理操作
	UserRoleDealer UserRole = "dealer" // 经销商，可执行下单相关的库存操作
)

// User 表示经过认证的操作主体
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}
