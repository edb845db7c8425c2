package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"

	"github.com/gosimple/slug"
)

// префикс реферальной ссылки в start_param: t.me/bot/app?startapp=ref_<code>
const startParamRefPrefix = "ref_"

// ReferralCodeFor - код по умолчанию: префикс + username из Telegram
func ReferralCodeFor(p domain.Profile) string {
	if p.Username != "" {
		return clampCode(rewards.ReferralPrefix + p.Username)
	}
	return FallbackReferralCode(p)
}

// FallbackReferralCode - код для пользователей без username или если код занят.
// Дефис не встречается в username, поэтому такой код не пересечется с кодом по username
func FallbackReferralCode(p domain.Profile) string {
	base := slug.Make(p.DisplayName)
	if base == "" {
		base = "user"
	}
	suffix := "-" + strconv.FormatInt(p.ID, 10)
	code := rewards.ReferralPrefix + base
	if len(code)+len(suffix) > rewards.ReferralMaxLen {
		code = code[:rewards.ReferralMaxLen-len(suffix)]
	}
	return code + suffix
}

func clampCode(code string) string {
	if len(code) > rewards.ReferralMaxLen {
		return code[:rewards.ReferralMaxLen]
	}
	return code
}

// ReferralCodeFromStartParam достает код из start_param мини-приложения
func ReferralCodeFromStartParam(param string) string {
	param = strings.TrimSpace(param)
	if code, ok := strings.CutPrefix(param, startParamRefPrefix); ok {
		return code
	}
	if strings.HasPrefix(param, rewards.ReferralPrefix) {
		return param
	}
	return ""
}

// BootstrapResult - ответ на первый запрос сессии
type BootstrapResult struct {
	*ActionResult
	Created       bool   `json:"created"`
	ReferralError string `json:"referral_error,omitempty"`
}

// Bootstrap создает или обновляет пользователя при входе, сохраняет дневной сброс
// и применяет реферальный код из ссылки, если он есть
func (s *RewardsService) Bootstrap(ctx context.Context, id TelegramIdentity) (*BootstrapResult, error) {
	u, created, err := s.ensureUser(ctx, id.Profile)
	if err != nil {
		return nil, err
	}

	res, err := s.refresh(ctx, u.ID, true)
	if err != nil {
		return nil, err
	}
	out := &BootstrapResult{ActionResult: res, Created: created}

	code := ReferralCodeFromStartParam(id.StartParam)
	if code == "" || res.User.ReferralCodeUsed {
		return out, nil
	}

	ref, err := s.PerformReferral(ctx, u.ID, code)
	if err != nil {
		logger.WithContext(ctx).Info("referral from start param not applied", "user_id", u.ID, "code", code, "error", err)
		out.ReferralError = err.Error()
		if ref != nil {
			out.ActionResult = ref
		}
		return out, nil
	}
	out.ActionResult = ref
	return out, nil
}

// ensureUser пробует код по username, затем запасной
func (s *RewardsService) ensureUser(ctx context.Context, p domain.Profile) (*domain.User, bool, error) {
	u, created, err := s.store.EnsureUser(ctx, p, ReferralCodeFor(p))
	if errors.Is(err, repository.ErrReferralCodeTaken) {
		u, created, err = s.store.EnsureUser(ctx, p, FallbackReferralCode(p))
	}
	return u, created, err
}
