package constants

import "time"

const (
	// APIVersionPrefix 所有 JSON 接口的路由前缀
	APIVersionPrefix = "/api/v1"

	// SessionHeader 客户端显式携带会话 ID 的请求头，优先于 Cookie
	SessionHeader = "X-Session-ID"
	// RequestIDHeader 请求 ID 透传头
	RequestIDHeader = "X-Request-ID"

	// DefaultSessionTTL 会话默认有效期
	DefaultSessionTTL = 24 * time.Hour

	// DefaultDuration 工作经历缺少 Duration 字段时使用的值
	DefaultDuration = "0 years"
)

// 经验分档
const (
	TierJunior = "0-1 years"
	TierMid    = "2-10 years"
	TierSenior = "10+ years"
)

// 问题类别，顺序即生成提示词中要求的输出顺序
const (
	CategoryProject    = "Project-based Questions"
	CategoryFillBlanks = "Fill-in-the-Blanks"
	CategoryCoding     = "Coding Questions"
)

// QuestionCategories 生成问题时要求的类别
var QuestionCategories = []string{
	CategoryProject,
	CategoryFillBlanks,
	CategoryCoding,
}

// ExpectedQuestionCounts 各类别期望的问题数量，数量不符只产生警告
var ExpectedQuestionCounts = map[string]int{
	CategoryProject:    2,
	CategoryFillBlanks: 5,
	CategoryCoding:     3,
}
