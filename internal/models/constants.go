package models

// 积分类型
const (
	CreditTypeChat  = "chat"
	CreditTypeGenAI = "genai"
)

// 订阅档位
const (
	TierFree    = "free"
	TierPro     = "pro"
	TierPremium = "premium"
)

// 媒体类型
const (
	MediaTypeImage    = "image"
	MediaTypeMusic    = "music"
	MediaTypeAlbumArt = "album_art"
)

// 生成任务状态
const (
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// 积分流水类型
const (
	TransactionKindAdd    = "add"
	TransactionKindDeduct = "deduct"
	TransactionKindReset  = "reset"
)

// ValidCreditType 校验积分类型取值
func ValidCreditType(t string) bool {
	return t == CreditTypeChat || t == CreditTypeGenAI
}

// ValidMediaType 校验媒体类型取值
func ValidMediaType(t string) bool {
	return t == MediaTypeImage || t == MediaTypeMusic || t == MediaTypeAlbumArt
}
