package domain

import "database/sql"

// ShouldDo 状态码语义标签：引擎据此决定副作用
type ShouldDo string

const (
	ShouldDoSetOnDuty   ShouldDo = "SET_ON_DUTY"
	ShouldDoSetOffDuty  ShouldDo = "SET_OFF_DUTY"
	ShouldDoSetAssigned ShouldDo = "SET_ASSIGNED"
	ShouldDoPanicButton ShouldDo = "PANIC_BUTTON"
	ShouldDoSetStatus   ShouldDo = "SET_STATUS" // 普通状态，无额外副作用
)

// StatusCode 状态码目录条目
// 约束：每个页面类别（LEO / EMS_FD）至多配置一个适用的 SET_ON_DUTY 默认码
type StatusCode struct {
	StatusID     string
	Value        string
	ShouldDo     ShouldDo
	Categories   []Category     // 适用的页面类别
	DepartmentID sql.NullString // 可选的部门作用域
}

// AppliesTo 状态码是否适用于该页面类别
func (c *StatusCode) AppliesTo(category Category) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}
