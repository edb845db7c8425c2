package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pendingListLimit = 20

// botAPI - часть tgbotapi.BotAPI, которой пользуется админ бот
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// AdminBot - ревью заявок на вывод через Telegram
type AdminBot struct {
	api          botAPI
	adminService *service.AdminService
	adminIDs     []int64 // Telegram ID пользователей с правами админа
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	log          *slog.Logger
}

// NewAdminBot создаёт нового админ бота
func NewAdminBot(token string, adminService *service.AdminService, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := newAdminBot(api, adminService, adminIDs)
	b.log.Info("admin bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newAdminBot(api botAPI, adminService *service.AdminService, adminIDs []int64) *AdminBot {
	return &AdminBot{
		api:          api,
		adminService: adminService,
		adminIDs:     adminIDs,
		stopCh:       make(chan struct{}),
		log:          logger.With("component", "admin_bot"),
	}
}

// Start запускает прослушивание команд, блокируется до Stop
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || msg.From == nil || !msg.IsCommand() || !b.isAdmin(msg.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(msg)
		}
	}
}

// Stop плавно останавливает бота
func (b *AdminBot) Stop() {
	b.stopOnce.Do(func() {
		b.log.Info("stopping admin bot...")
		close(b.stopCh)
		b.api.StopReceivingUpdates()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response := b.reply(ctx, msg.From.ID, msg.Command(), msg.CommandArguments())
	if response == "" {
		return
	}
	if err := b.send(msg.Chat.ID, response); err != nil {
		b.log.Error("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// reply выполняет команду и возвращает текст ответа
func (b *AdminBot) reply(ctx context.Context, adminID int64, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "pending", "withdrawals":
		return b.handlePending(ctx)
	case "approve":
		return b.handleApprove(ctx, adminID, args)
	case "reject":
		return b.handleReject(ctx, adminID, args)
	case "user":
		return b.handleUser(ctx, args)
	default:
		return "Неизвестная команда. /help - список команд"
	}
}

const helpMessage = `<b>Админ панель</b>

/pending - заявки на вывод
/approve &lt;id&gt; [комментарий] - отметить выплаченной
/reject &lt;id&gt; &lt;причина&gt; - отклонить, поинты вернутся
/user &lt;tg_id&gt; - запись пользователя`

func (b *AdminBot) handlePending(ctx context.Context) string {
	withdrawals, err := b.adminService.GetPendingWithdrawals(ctx, pendingListLimit)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if len(withdrawals) == 0 {
		return "Нет ожидающих выводов"
	}

	var sb strings.Builder
	sb.WriteString("<b>Ожидающие выводы</b>\n\n")
	for _, w := range withdrawals {
		sb.WriteString(fmt.Sprintf("#%d | @%s (TG: %d)\n", w.ID, html.EscapeString(w.Username), w.UserID))
		sb.WriteString(fmt.Sprintf("Сумма: %d поинтов ($%s)\n", w.Points, w.PayoutUSD.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("%s: <code>%s</code>\n", w.Method, html.EscapeString(w.Address)))
		sb.WriteString(fmt.Sprintf("%s\n\n", w.CreatedAt.Format("02.01.2006 15:04")))
	}
	sb.WriteString("/approve &lt;id&gt; - одобрить\n/reject &lt;id&gt; &lt;причина&gt; - отклонить")
	return sb.String()
}

func (b *AdminBot) handleApprove(ctx context.Context, adminID int64, args string) string {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "Использование: /approve &lt;id&gt; [комментарий]"
	}
	notes := ""
	if len(parts) == 2 {
		notes = parts[1]
	}

	w, err := b.adminService.ApproveWithdrawal(ctx, id, adminID, notes)
	if err != nil {
		return reviewError(id, err)
	}
	return fmt.Sprintf("Вывод #%d одобрен: %d поинтов ($%s)", w.ID, w.Points, w.PayoutUSD.StringFixed(2))
}

func (b *AdminBot) handleReject(ctx context.Context, adminID int64, args string) string {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return "Использование: /reject &lt;id&gt; &lt;причина&gt;"
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "Неверный ID вывода"
	}

	w, err := b.adminService.RejectWithdrawal(ctx, id, adminID, parts[1])
	if err != nil {
		return reviewError(id, err)
	}
	return fmt.Sprintf("Вывод #%d отклонён. %d поинтов возвращены.", w.ID, w.Points)
}

func reviewError(id int64, err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Sprintf("Вывод #%d не найден", id)
	case errors.Is(err, service.ErrWithdrawalReviewed):
		return fmt.Sprintf("Вывод #%d уже обработан", id)
	default:
		return fmt.Sprintf("Ошибка: %s", html.EscapeString(err.Error()))
	}
}

func (b *AdminBot) handleUser(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "Использование: /user &lt;tg_id&gt;"
	}

	u, err := b.adminService.GetUser(ctx, id)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %d", id)
	}

	referredBy := "-"
	if u.ReferredBy != nil {
		referredBy = strconv.FormatInt(*u.ReferredBy, 10)
	}
	return fmt.Sprintf(`<b>Пользователь %d</b>

- Username: @%s
- Имя: %s
- Поинты: %d
- Вращения: %d / за рекламу %d
- Реклама сегодня: %d
- Реф. код: <code>%s</code> (приглашено %d)
- Пригласил: %s
- Разовый вывод: %t
- Версия: %d
- Регистрация: %s`,
		u.ID,
		html.EscapeString(u.Username),
		html.EscapeString(u.DisplayName),
		u.Points,
		u.DailySpinsLeft, u.DailyAdSpinsLeft,
		u.DailyAdsWatched,
		html.EscapeString(u.ReferralCode), u.ReferralsCount,
		referredBy,
		u.ClaimedFirstWithdrawal,
		u.Version,
		u.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *AdminBot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

// SendNotification отправляет сообщение пользователю
func (b *AdminBot) SendNotification(tgID int64, message string) error {
	return b.send(tgID, message)
}

// NotifyAdminsNewWithdrawal рассылает новую заявку всем админам
func (b *AdminBot) NotifyAdminsNewWithdrawal(w domain.Withdrawal) {
	message := fmt.Sprintf(`<b>Новый запрос на вывод!</b>

Пользователь: @%s (TG: %d)
Сумма: %d поинтов ($%s)
%s: <code>%s</code>

ID: #%d

/approve %d - одобрить
/reject %d причина - отклонить`,
		html.EscapeString(w.Username), w.UserID, w.Points, w.PayoutUSD.StringFixed(2),
		w.Method, html.EscapeString(w.Address), w.ID, w.ID, w.ID)

	for _, adminID := range b.adminIDs {
		if err := b.send(adminID, message); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "withdrawal_id", w.ID, "error", err)
		}
	}
}

// NotifyUserReviewed сообщает пользователю решение по заявке
func (b *AdminBot) NotifyUserReviewed(w domain.Withdrawal) {
	var message string
	switch w.Status {
	case domain.WithdrawalStatusApproved:
		message = fmt.Sprintf("Ваш вывод #%d на $%s одобрен и отправлен.", w.ID, w.PayoutUSD.StringFixed(2))
	case domain.WithdrawalStatusRejected:
		message = fmt.Sprintf("Ваш вывод #%d отклонён.\nПричина: %s\n\n%d поинтов возвращены на баланс.",
			w.ID, html.EscapeString(w.AdminNotes), w.Points)
	default:
		return
	}
	if err := b.send(w.UserID, message); err != nil {
		b.log.Warn("failed to notify user", "user_id", w.UserID, "withdrawal_id", w.ID, "error", err)
	}
}
