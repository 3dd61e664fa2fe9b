package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusAttended  = "attended"
	StatusAbsent    = "absent"
	StatusExpired   = "expired"
)

const (
	NotificationPending  = "pending"
	NotificationSent     = "sent"
	NotificationReceived = "received"
	NotificationFailed   = "failed"
)

const (
	NotificationTypeReminder      = "reminder"
	NotificationTypeCancellation  = "cancellation"
	NotificationTypeReschedule    = "reschedule"
	NotificationTypeRatingRequest = "rating_request"
	NotificationTypeChange        = "change"
)

const (
	RoleMember  = "member"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

const (
	// DefaultDurationMinutes применяется, когда у брони нет данных о длительности
	DefaultDurationMinutes = 60

	// RatingWindowHours окно после окончания занятия для отправки оценки
	RatingWindowHours = 24

	// ReminderOffsetMinutes за сколько минут до начала занятия отправляется напоминание
	ReminderOffsetMinutes = 120

	// DispatchIntervalMinutes интервал опроса очереди уведомлений
	DispatchIntervalMinutes = 15

	// OTPCooldownSeconds минимальный интервал между запросами кода
	OTPCooldownSeconds = 30

	// OTPHourlyLimit количество запросов кода в скользящем часе
	OTPHourlyLimit = 5

	// OTPCodeTTL время жизни выданного кода в секундах
	OTPCodeTTL = 10 * 60

	// DefaultRedisTTL время жизни записи в Redis в секундах
	DefaultRedisTTL = 24 * 60 * 60
)

// MinScore и MaxScore границы оценки занятия.
const (
	MinScore = 1
	MaxScore = 5
)
