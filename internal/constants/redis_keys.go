package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// InterviewModulePrefix 面试模块
	InterviewModulePrefix = "interview"

	// EntitySession 会话实体
	EntitySession = "session"

	// KeyInterviewSessionPrefix 面试会话 Key 前缀，后接会话 ID
	// 值为会话 JSON，格式: app:interview:session:{sessionID}
	KeyInterviewSessionPrefix = AppPrefix + ":" + InterviewModulePrefix + ":" + EntitySession + ":"
)
