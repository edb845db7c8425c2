package rewards

import "errors"

// Виды ошибок. Конкретные причины ниже оборачивают один из них,
// так что errors.Is(err, ErrPreconditionFailed) срабатывает для любой причины
var (
	ErrNotFound           = errors.New("запись не найдена")
	ErrPreconditionFailed = errors.New("условие не выполнено")
	ErrExternalDependency = errors.New("внешний сервис недоступен")
)

var (
	ErrNoSpinsLeft         = precondition("бесплатные вращения на сегодня закончились")
	ErrFreeSpinsRemain     = precondition("сначала используйте бесплатные вращения")
	ErrNoAdSpinsLeft       = precondition("вращения за рекламу на сегодня закончились")
	ErrCooldownActive      = precondition("реклама на перезарядке")
	ErrAdLimitReached      = precondition("дневной лимит рекламы исчерпан")
	ErrUnknownTask         = precondition("неизвестное задание")
	ErrTaskAlreadyOpened   = precondition("задание уже выполнено сегодня")
	ErrTasksIncomplete     = precondition("не все задания выполнены сегодня")
	ErrTasksAlreadyClaimed = precondition("награда за задания уже получена сегодня")
	ErrReferralAlreadyUsed = precondition("реферальный код уже использован")
	ErrInvalidReferralCode = precondition("неверный реферальный код")
	ErrSelfReferral        = precondition("нельзя использовать собственный код")
	ErrUnknownTier         = precondition("сумма не совпадает ни с одним вариантом вывода")
	ErrInsufficientPoints  = precondition("недостаточно поинтов")
	ErrFirstTierClaimed    = precondition("разовый вариант вывода уже использован")
	ErrUnknownMethod       = precondition("неизвестный способ вывода")
	ErrInvalidDestination  = precondition("неверный адрес для вывода")
	// запись изменилась между проверкой и коммитом, клиент может повторить
	ErrConcurrentUpdate = precondition("запись изменена параллельно")

	ErrAdNotCompleted = external("реклама не досмотрена")
	ErrAdUnavailable  = external("рекламный сервис недоступен")
)

// причина с привязкой к виду ошибки
type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }
func (e *reasonError) Unwrap() error { return e.kind }

func precondition(msg string) error {
	return &reasonError{kind: ErrPreconditionFailed, msg: msg}
}

func external(msg string) error {
	return &reasonError{kind: ErrExternalDependency, msg: msg}
}

// IsRecoverable - ошибку можно показать пользователю и дать повторить
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrPreconditionFailed) || errors.Is(err, ErrExternalDependency)
}
